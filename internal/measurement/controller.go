package measurement

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/straye-as/measure-api/internal/domain"
)

// PeriodQuery narrows a period listing
type PeriodQuery struct {
	Name     string
	Archived *bool
}

// DetailFilter narrows a detail listing beyond the selection chain
type DetailFilter struct {
	Status *domain.MeasurementStatus
}

// DetailQuery is the full detail listing request. ItemID is zero for a category selection.
type DetailQuery struct {
	ProjectID  int64
	ContractID int64
	PeriodID   int64
	ItemID     int64
	ItemType   domain.MeasurementItemType
	Filter     *DetailFilter
}

// Gateway is the remote data source. Returned error messages are shown to the user unchanged.
type Gateway interface {
	QueryProjects(ctx context.Context, userID string) ([]domain.ProjectDTO, error)
	QueryContracts(ctx context.Context, projectID int64, userID string) ([]domain.ContractDTO, error)
	QueryPeriods(ctx context.Context, projectID, contractID int64, query *PeriodQuery) ([]domain.PeriodDTO, error)
	QueryMeasurementDetails(ctx context.Context, query DetailQuery) ([]domain.MeasurementDetailDTO, error)
	CreateMeasurementDetail(ctx context.Context, payload *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error)
	UpdateMeasurementDetail(ctx context.Context, payload *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error)
	DeleteMeasurementDetail(ctx context.Context, id int64) error
	ReviewMeasurementDetail(ctx context.Context, req *domain.ReviewMeasurementDetailRequest) (*domain.MeasurementDetailDTO, error)
}

// Options tune controller behaviour
type Options struct {
	// HideArchivedPeriods drops archived periods from the period list
	HideArchivedPeriods bool
	// AllowReReview forwards reviews of approved or rejected details to the gateway
	AllowReReview bool
}

// list levels, each with its own selection epoch
const (
	levelProjects = iota
	levelContracts
	levelPeriods
	levelDetails
	levelCount
)

// Snapshot is a copy of the controller state
type Snapshot struct {
	SelectedProjectID  int64
	SelectedContractID int64
	SelectedPeriodID   int64
	SelectedItem       ItemSelection
	Projects           []domain.ProjectDTO
	Contracts          []domain.ContractDTO
	Periods            []domain.PeriodDTO
	ItemTree           ItemTree
	Details            []domain.MeasurementDetailDTO
}

// Controller holds the selection chain and the lists that depend on it.
// Changing a selection clears everything below it before the next fetch is issued,
// and responses that arrive after a newer fetch for the same list are discarded.
type Controller struct {
	gateway  Gateway
	notifier Notifier
	session  Session
	opts     Options

	mu  sync.Mutex
	gen [levelCount]uint64
	// picked counts explicit selections per level. A list that arrives after the
	// user picked an entry from that level only replaces the list.
	picked [levelCount]uint64
	state  Snapshot
}

// NewController creates a controller acting for session
func NewController(gateway Gateway, notifier Notifier, session Session, opts Options) *Controller {
	if notifier == nil {
		notifier = NotifierFunc(func(Level, string) {})
	}
	c := &Controller{
		gateway:  gateway,
		notifier: notifier,
		session:  session,
		opts:     opts,
	}
	c.state.ItemTree = emptyTree()
	return c
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Projects = slices.Clone(s.Projects)
	s.Contracts = slices.Clone(s.Contracts)
	s.Periods = slices.Clone(s.Periods)
	s.Details = slices.Clone(s.Details)
	return s
}

// bump starts a new epoch for level and returns it. Callers hold c.mu.
func (c *Controller) bump(level int) uint64 {
	c.gen[level]++
	return c.gen[level]
}

// clearBelow resets every selection and list under level and starts new epochs for the
// cleared lists so that responses already in flight for them are dropped. Callers hold c.mu.
func (c *Controller) clearBelow(level int) {
	switch level {
	case levelProjects:
		c.state.SelectedProjectID = 0
		c.state.Contracts = nil
		c.gen[levelContracts]++
		fallthrough
	case levelContracts:
		c.state.SelectedContractID = 0
		c.state.SelectedItem = ItemSelection{}
		c.state.ItemTree = emptyTree()
		c.state.Periods = nil
		c.gen[levelPeriods]++
		fallthrough
	case levelPeriods:
		c.state.SelectedPeriodID = 0
		fallthrough
	case levelDetails:
		c.state.Details = nil
		c.gen[levelDetails]++
	}
}

// fail notifies err and wraps it as ErrRemote. Callers must not hold c.mu.
func (c *Controller) fail(err error) error {
	c.notifier.Notify(LevelError, err.Error())
	return fmt.Errorf("%w: %w", ErrRemote, err)
}

// LoadProjects fetches the projects visible to userID and selects the first one.
// An empty result or a failure leaves the whole chain empty.
func (c *Controller) LoadProjects(ctx context.Context, userID string) error {
	c.mu.Lock()
	epoch := c.bump(levelProjects)
	picked := c.picked[levelProjects]
	c.mu.Unlock()

	projects, err := c.gateway.QueryProjects(ctx, userID)

	c.mu.Lock()
	if epoch != c.gen[levelProjects] {
		c.mu.Unlock()
		return nil
	}
	if picked != c.picked[levelProjects] {
		if err != nil {
			c.mu.Unlock()
			return c.fail(err)
		}
		c.state.Projects = projects
		c.mu.Unlock()
		return nil
	}
	c.state.Projects = nil
	c.clearBelow(levelProjects)
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	if len(projects) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.state.Projects = projects
	c.mu.Unlock()

	return c.OnProjectChange(ctx, projects[0].ID)
}

// OnProjectChange selects a project, clears everything below it and loads its contracts
func (c *Controller) OnProjectChange(ctx context.Context, projectID int64) error {
	c.mu.Lock()
	c.picked[levelProjects]++
	c.clearBelow(levelProjects)
	c.state.SelectedProjectID = projectID
	c.mu.Unlock()

	return c.LoadContracts(ctx, projectID)
}

// LoadContracts fetches the project's contracts and selects the first one.
// The result is applied only while projectID is still the selected project.
func (c *Controller) LoadContracts(ctx context.Context, projectID int64) error {
	c.mu.Lock()
	epoch := c.bump(levelContracts)
	picked := c.picked[levelContracts]
	c.mu.Unlock()

	contracts, err := c.gateway.QueryContracts(ctx, projectID, c.session.UserID)

	c.mu.Lock()
	if epoch != c.gen[levelContracts] || projectID != c.state.SelectedProjectID {
		c.mu.Unlock()
		return nil
	}
	if picked != c.picked[levelContracts] {
		if err != nil {
			c.mu.Unlock()
			return c.fail(err)
		}
		c.state.Contracts = contracts
		if c.state.ItemTree.IsEmpty() {
			c.buildTree()
		}
		c.mu.Unlock()
		return nil
	}
	c.state.Contracts = nil
	c.clearBelow(levelContracts)
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	if len(contracts) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.state.Contracts = contracts
	c.mu.Unlock()

	return c.OnContractChange(ctx, contracts[0].ID)
}

// OnContractChange selects a contract, rebuilds the item tree and loads the contract's periods
func (c *Controller) OnContractChange(ctx context.Context, contractID int64) error {
	c.mu.Lock()
	c.picked[levelContracts]++
	c.clearBelow(levelContracts)
	c.state.SelectedContractID = contractID
	c.buildTree()
	projectID := c.state.SelectedProjectID
	c.mu.Unlock()

	return c.LoadPeriods(ctx, projectID, contractID, nil)
}

// LoadPeriods fetches the contract's periods and selects the first one.
// The result is applied only while contractID is still the selected contract.
func (c *Controller) LoadPeriods(ctx context.Context, projectID, contractID int64, query *PeriodQuery) error {
	c.mu.Lock()
	epoch := c.bump(levelPeriods)
	picked := c.picked[levelPeriods]
	c.mu.Unlock()

	periods, err := c.gateway.QueryPeriods(ctx, projectID, contractID, query)

	c.mu.Lock()
	if epoch != c.gen[levelPeriods] || contractID != c.state.SelectedContractID {
		c.mu.Unlock()
		return nil
	}
	if c.opts.HideArchivedPeriods {
		periods = slices.DeleteFunc(periods, func(p domain.PeriodDTO) bool { return p.IsArchived })
	}
	if picked != c.picked[levelPeriods] {
		if err != nil {
			c.mu.Unlock()
			return c.fail(err)
		}
		c.state.Periods = periods
		c.mu.Unlock()
		return nil
	}
	c.state.Periods = nil
	c.clearBelow(levelPeriods)
	if err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	if len(periods) == 0 {
		c.mu.Unlock()
		return nil
	}
	c.state.Periods = periods
	c.mu.Unlock()

	return c.OnPeriodChange(ctx, periods[0].ID)
}

// OnPeriodChange selects a period and refetches the detail list
func (c *Controller) OnPeriodChange(ctx context.Context, periodID int64) error {
	c.mu.Lock()
	c.picked[levelPeriods]++
	c.clearBelow(levelPeriods)
	c.state.SelectedPeriodID = periodID
	c.mu.Unlock()

	_, err := c.FetchMeasurementDetailList(ctx, nil)
	return err
}

// OnItemSelect selects a leaf item or a whole category and refetches the detail list
func (c *Controller) OnItemSelect(ctx context.Context, node TreeNode) error {
	c.mu.Lock()
	c.clearBelow(levelDetails)
	c.state.SelectedItem = node.selection()
	c.mu.Unlock()

	_, err := c.FetchMeasurementDetailList(ctx, nil)
	return err
}

// FetchMeasurementDetailList loads the details for the current selection.
// Without a selected project, contract and period it returns an empty list and makes no call.
func (c *Controller) FetchMeasurementDetailList(ctx context.Context, filter *DetailFilter) ([]domain.MeasurementDetailDTO, error) {
	c.mu.Lock()
	s := &c.state
	if s.SelectedProjectID == 0 || s.SelectedContractID == 0 || s.SelectedPeriodID == 0 {
		s.Details = nil
		c.mu.Unlock()
		return nil, nil
	}
	query := DetailQuery{
		ProjectID:  s.SelectedProjectID,
		ContractID: s.SelectedContractID,
		PeriodID:   s.SelectedPeriodID,
		ItemID:     s.SelectedItem.ID,
		ItemType:   s.SelectedItem.Type,
		Filter:     filter,
	}
	epoch := c.bump(levelDetails)
	c.mu.Unlock()

	details, err := c.gateway.QueryMeasurementDetails(ctx, query)

	c.mu.Lock()
	if epoch != c.gen[levelDetails] {
		c.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		c.state.Details = nil
		c.mu.Unlock()
		return nil, c.fail(err)
	}
	c.state.Details = details
	c.mu.Unlock()
	return slices.Clone(details), nil
}

// buildTree rebuilds the item tree from the selected contract. Callers hold c.mu.
func (c *Controller) buildTree() {
	for i := range c.state.Contracts {
		if c.state.Contracts[i].ID == c.state.SelectedContractID {
			c.state.ItemTree = BuildItemTree(&c.state.Contracts[i])
			return
		}
	}
}

// selectionKeys returns the foreign keys of the current selection
func (c *Controller) selectionKeys() (projectID, contractID, periodID int64, item ItemSelection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SelectedProjectID, c.state.SelectedContractID, c.state.SelectedPeriodID, c.state.SelectedItem
}

// findDetail looks a detail up in the current list
func (c *Controller) findDetail(id int64) (domain.MeasurementDetailDTO, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.state.Details {
		if d.ID == id {
			return d, true
		}
	}
	return domain.MeasurementDetailDTO{}, false
}
