package leads

import (
	"context"
	"errors"
	"sort"
)

// TestApi is an in-memory Api used in handler tests.
// ErrToReturn, when set, is returned by every call - simulates the
// underlying store being unavailable.
type TestApi struct {
	leads       map[string]*Lead
	nextId      int
	ErrToReturn error
	Calls       int
}

func NewTestApi() *TestApi {
	return &TestApi{
		leads:  make(map[string]*Lead),
		nextId: 1,
	}
}

func (api *TestApi) Add(_ context.Context, lead *Lead) (*Lead, error) {
	api.Calls++
	if api.ErrToReturn != nil {
		return nil, api.ErrToReturn
	}
	if existing, ok := api.leads[lead.Email]; ok {
		existing.Name = lead.Name
		existing.Phone = lead.Phone
		return existing, nil
	}
	lead.Id = api.nextId
	api.nextId++
	api.leads[lead.Email] = lead
	return lead, nil
}

func (api *TestApi) GetByEmail(_ context.Context, email string) (*Lead, error) {
	api.Calls++
	if api.ErrToReturn != nil {
		return nil, api.ErrToReturn
	}
	lead, ok := api.leads[email]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

func (api *TestApi) Unsubscribe(_ context.Context, email string) error {
	api.Calls++
	if api.ErrToReturn != nil {
		return api.ErrToReturn
	}
	if lead, ok := api.leads[email]; ok {
		lead.Unsubscribed = true
	}
	return nil
}

func (api *TestApi) List(context.Context) ([]Lead, error) {
	api.Calls++
	if api.ErrToReturn != nil {
		return nil, api.ErrToReturn
	}
	var all []Lead
	for _, lead := range api.leads {
		all = append(all, *lead)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Id < all[j].Id })
	return all, nil
}

var ErrTestStoreDown = errors.New("test store down")
