package measurement

import (
	"sort"

	"github.com/straye-as/measure-api/internal/domain"
)

// TreeNode is either a CategoryNode or a LeafNode
type TreeNode interface {
	ItemType() domain.MeasurementItemType
	Title() string
	selection() ItemSelection
}

// CategoryNode is the root of one item category. Selecting it selects every item of that type.
type CategoryNode struct {
	Type     domain.MeasurementItemType
	Children []LeafNode
}

func (n CategoryNode) ItemType() domain.MeasurementItemType { return n.Type }

func (n CategoryNode) Title() string {
	if n.Type == domain.MeasurementItemTypeMaterial {
		return "Material items"
	}
	return "Cost items"
}

func (n CategoryNode) selection() ItemSelection {
	return ItemSelection{Type: n.Type}
}

// LeafNode is a single catalog item
type LeafNode struct {
	ItemID int64
	Type   domain.MeasurementItemType
	Item   domain.MeasurementItemDTO
}

func (n LeafNode) ItemType() domain.MeasurementItemType { return n.Type }

func (n LeafNode) Title() string {
	if n.Item.Unit == "" {
		return n.Item.Name
	}
	return n.Item.Name + " (" + n.Item.Unit + ")"
}

func (n LeafNode) selection() ItemSelection {
	item := n.Item
	return ItemSelection{ID: n.ItemID, Type: n.Type, Item: &item}
}

// ItemSelection is the selected tree node. ID is zero and Item nil for a category selection;
// the zero value means nothing is selected.
type ItemSelection struct {
	ID   int64
	Type domain.MeasurementItemType
	Item *domain.MeasurementItemDTO
}

// IsLeaf reports whether a single item is selected
func (s ItemSelection) IsLeaf() bool { return s.ID != 0 }

// IsEmpty reports whether nothing is selected
func (s ItemSelection) IsEmpty() bool { return s.ID == 0 && s.Type == "" }

// ItemTree is the two-root forest built from a contract's catalog
type ItemTree struct {
	Cost     CategoryNode
	Material CategoryNode
}

// Roots returns the cost root followed by the material root
func (t ItemTree) Roots() []CategoryNode {
	return []CategoryNode{t.Cost, t.Material}
}

// IsEmpty reports whether the tree has no items
func (t ItemTree) IsEmpty() bool {
	return len(t.Cost.Children) == 0 && len(t.Material.Children) == 0
}

// Find returns the leaf for itemID
func (t ItemTree) Find(itemID int64) (LeafNode, bool) {
	for _, root := range t.Roots() {
		for _, leaf := range root.Children {
			if leaf.ItemID == itemID {
				return leaf, true
			}
		}
	}
	return LeafNode{}, false
}

// Root returns the category node for itemType
func (t ItemTree) Root(itemType domain.MeasurementItemType) CategoryNode {
	if itemType == domain.MeasurementItemTypeMaterial {
		return t.Material
	}
	return t.Cost
}

func emptyTree() ItemTree {
	return ItemTree{
		Cost:     CategoryNode{Type: domain.MeasurementItemTypeCost},
		Material: CategoryNode{Type: domain.MeasurementItemTypeMaterial},
	}
}

// BuildItemTree groups a contract's items under their category, ordered by sort order
func BuildItemTree(contract *domain.ContractDTO) ItemTree {
	tree := emptyTree()
	if contract == nil {
		return tree
	}
	tree.Cost.Children = leaves(contract.CostItems, domain.MeasurementItemTypeCost)
	tree.Material.Children = leaves(contract.MaterialItems, domain.MeasurementItemTypeMaterial)
	return tree
}

func leaves(items []domain.MeasurementItemDTO, itemType domain.MeasurementItemType) []LeafNode {
	out := make([]LeafNode, 0, len(items))
	for _, item := range items {
		out = append(out, LeafNode{ItemID: item.ID, Type: itemType, Item: item})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Item.SortOrder < out[j].Item.SortOrder
	})
	return out
}
