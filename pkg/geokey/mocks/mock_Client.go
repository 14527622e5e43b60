// Package mocks provides test doubles for the geokey client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	geokey "github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// GetProject provides a mock function with given fields: ctx, id
func (_m *MockClient) GetProject(ctx context.Context, id int64) (*geokey.Project, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetProject")
	}

	var r0 *geokey.Project
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*geokey.Project)
	}
	return r0, ret.Error(1)
}

// ListProjects provides a mock function with given fields: ctx, active
func (_m *MockClient) ListProjects(ctx context.Context, active bool) ([]geokey.Project, error) {
	ret := _m.Called(ctx, active)

	if len(ret) == 0 {
		panic("no return value specified for ListProjects")
	}

	var r0 []geokey.Project
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]geokey.Project)
	}
	return r0, ret.Error(1)
}

// LockProject provides a mock function with given fields: ctx, id
func (_m *MockClient) LockProject(ctx context.Context, id int64) error {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for LockProject")
	}

	return ret.Error(0)
}

// CanContribute provides a mock function with given fields: ctx, projectID, userID
func (_m *MockClient) CanContribute(ctx context.Context, projectID, userID int64) (bool, error) {
	ret := _m.Called(ctx, projectID, userID)

	if len(ret) == 0 {
		panic("no return value specified for CanContribute")
	}

	return ret.Bool(0), ret.Error(1)
}

// GetCategory provides a mock function with given fields: ctx, projectID, categoryID
func (_m *MockClient) GetCategory(ctx context.Context, projectID, categoryID int64) (*geokey.Category, error) {
	ret := _m.Called(ctx, projectID, categoryID)

	if len(ret) == 0 {
		panic("no return value specified for GetCategory")
	}

	var r0 *geokey.Category
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*geokey.Category)
	}
	return r0, ret.Error(1)
}

// GetField provides a mock function with given fields: ctx, id
func (_m *MockClient) GetField(ctx context.Context, id int64) (*geokey.Field, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetField")
	}

	var r0 *geokey.Field
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*geokey.Field)
	}
	return r0, ret.Error(1)
}

// GetUser provides a mock function with given fields: ctx, id
func (_m *MockClient) GetUser(ctx context.Context, id int64) (*geokey.User, error) {
	ret := _m.Called(ctx, id)

	if len(ret) == 0 {
		panic("no return value specified for GetUser")
	}

	var r0 *geokey.User
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*geokey.User)
	}
	return r0, ret.Error(1)
}

// CreateContribution provides a mock function with given fields: ctx, projectID, userID, c
func (_m *MockClient) CreateContribution(ctx context.Context, projectID, userID int64, c geokey.Contribution) (*geokey.Created, error) {
	ret := _m.Called(ctx, projectID, userID, c)

	if len(ret) == 0 {
		panic("no return value specified for CreateContribution")
	}

	var r0 *geokey.Created
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*geokey.Created)
	}
	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient and registers cleanup
// that asserts the expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ geokey.Client = (*MockClient)(nil)
