package measurement

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/straye-as/measure-api/internal/domain"
)

// fakeGateway is an in-memory Gateway that records every call
type fakeGateway struct {
	mu sync.Mutex

	projects  []domain.ProjectDTO
	contracts map[int64][]domain.ContractDTO
	periods   map[int64][]domain.PeriodDTO
	details   []domain.MeasurementDetailDTO
	nextID    int64

	// errs fails the named method with the given error
	errs map[string]error
	// hook runs before a query returns, keyed by the method and its leading id
	hook func(method string, id int64)
	// overwrite lets reviews replace a non-pending status
	overwrite bool

	calls         []string
	detailQueries []DetailQuery
	payloads      []domain.MeasurementDetailPayload
	reviews       []domain.ReviewMeasurementDetailRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		projects: []domain.ProjectDTO{{ID: 1, Name: "Harbour Bridge"}, {ID: 2, Name: "Ring Road"}},
		contracts: map[int64][]domain.ContractDTO{
			1: {{
				ID:               10,
				RelatedProjectID: 1,
				Name:             "Main works",
				CostItems: []domain.MeasurementItemDTO{
					{ID: 4, RelatedContractID: 10, ItemType: domain.MeasurementItemTypeCost, Name: "Site setup", SortOrder: 2},
					{ID: 3, RelatedContractID: 10, ItemType: domain.MeasurementItemTypeCost, Name: "Survey", SortOrder: 1},
				},
				MaterialItems: []domain.MeasurementItemDTO{
					{ID: 5, RelatedContractID: 10, ItemType: domain.MeasurementItemTypeMaterial, Name: "Concrete C35", Unit: "m3"},
				},
			}, {ID: 11, RelatedProjectID: 1, Name: "Lighting"}},
			2: {{ID: 20, RelatedProjectID: 2, Name: "Earthworks"}},
		},
		periods: map[int64][]domain.PeriodDTO{
			10: {{ID: 100, RelatedContractID: 10, Name: "2024-02"}, {ID: 101, RelatedContractID: 10, Name: "2024-01"}},
			20: {{ID: 200, RelatedContractID: 20, Name: "2024-01"}},
		},
		nextID: 1000,
		errs:   map[string]error{},
	}
}

func (g *fakeGateway) record(method string, id int64) error {
	g.mu.Lock()
	g.calls = append(g.calls, method)
	hook := g.hook
	err := g.errs[method]
	g.mu.Unlock()

	if hook != nil {
		hook(method, id)
	}
	return err
}

func (g *fakeGateway) setHook(hook func(method string, id int64)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hook = hook
}

func (g *fakeGateway) count(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (g *fakeGateway) addDetail(d domain.MeasurementDetailDTO) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.details = append(g.details, d)
}

func (g *fakeGateway) QueryProjects(_ context.Context, _ string) ([]domain.ProjectDTO, error) {
	if err := g.record("QueryProjects", 0); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.ProjectDTO(nil), g.projects...), nil
}

func (g *fakeGateway) QueryContracts(_ context.Context, projectID int64, _ string) ([]domain.ContractDTO, error) {
	if err := g.record("QueryContracts", projectID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.ContractDTO(nil), g.contracts[projectID]...), nil
}

func (g *fakeGateway) QueryPeriods(_ context.Context, _, contractID int64, _ *PeriodQuery) ([]domain.PeriodDTO, error) {
	if err := g.record("QueryPeriods", contractID); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.PeriodDTO(nil), g.periods[contractID]...), nil
}

func (g *fakeGateway) QueryMeasurementDetails(_ context.Context, q DetailQuery) ([]domain.MeasurementDetailDTO, error) {
	g.mu.Lock()
	g.detailQueries = append(g.detailQueries, q)
	g.mu.Unlock()
	if err := g.record("QueryMeasurementDetails", q.PeriodID); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.MeasurementDetailDTO
	for _, d := range g.details {
		if d.RelatedPeriodID != q.PeriodID {
			continue
		}
		if q.ItemID != 0 && d.RelatedMeasurementItemID != q.ItemID {
			continue
		}
		if q.ItemType != "" && d.ItemType != q.ItemType {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *fakeGateway) CreateMeasurementDetail(_ context.Context, p *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error) {
	g.mu.Lock()
	g.payloads = append(g.payloads, *p)
	g.mu.Unlock()
	if err := g.record("CreateMeasurementDetail", 0); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	d := domain.MeasurementDetailDTO{
		ID:                       g.nextID,
		RelatedProjectID:         p.RelatedProjectID,
		RelatedContractID:        p.RelatedContractID,
		RelatedPeriodID:          p.RelatedPeriodID,
		RelatedMeasurementItemID: p.RelatedMeasurementItemID,
		ItemType:                 domain.MeasurementItemTypeMaterial,
		CurrentCount:             p.CurrentCount,
		Remark:                   p.Remark,
	}
	g.details = append(g.details, d)
	return &d, nil
}

func (g *fakeGateway) UpdateMeasurementDetail(_ context.Context, p *domain.MeasurementDetailPayload) (*domain.MeasurementDetailDTO, error) {
	g.mu.Lock()
	g.payloads = append(g.payloads, *p)
	g.mu.Unlock()
	if err := g.record("UpdateMeasurementDetail", p.ID); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.details {
		if g.details[i].ID == p.ID {
			g.details[i].CurrentCount = p.CurrentCount
			g.details[i].Remark = p.Remark
			d := g.details[i]
			return &d, nil
		}
	}
	return nil, errors.New("measurement detail not found")
}

func (g *fakeGateway) DeleteMeasurementDetail(_ context.Context, id int64) error {
	if err := g.record("DeleteMeasurementDetail", id); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.details {
		if g.details[i].ID == id {
			g.details = append(g.details[:i], g.details[i+1:]...)
			return nil
		}
	}
	return errors.New("measurement detail not found")
}

func (g *fakeGateway) ReviewMeasurementDetail(_ context.Context, req *domain.ReviewMeasurementDetailRequest) (*domain.MeasurementDetailDTO, error) {
	g.mu.Lock()
	g.reviews = append(g.reviews, *req)
	g.mu.Unlock()
	if err := g.record("ReviewMeasurementDetail", req.ID); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.details {
		d := &g.details[i]
		if d.ID != req.ID {
			continue
		}
		if d.MeasurementStatus != domain.MeasurementStatusPending && !g.overwrite {
			return nil, errors.New("measurement detail has already been reviewed")
		}
		d.MeasurementStatus = domain.DecisionFromPass(req.IsPass).Status()
		d.MeasurementComment = req.Comment
		out := *d
		return &out, nil
	}
	return nil, errors.New("measurement detail not found")
}

// recorder collects notifications
type recorder struct {
	mu       sync.Mutex
	messages []string
	levels   []Level
}

func (r *recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels = append(r.levels, level)
	r.messages = append(r.messages, message)
}

func (r *recorder) errorMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for i, l := range r.levels {
		if l == LevelError {
			out = append(out, r.messages[i])
		}
	}
	return out
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
