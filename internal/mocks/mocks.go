// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/parkbook/internal/config"
	"github.com/xkilldash9x/parkbook/internal/page"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Site() config.SiteConfig {
	args := m.Called()
	return args.Get(0).(config.SiteConfig)
}

func (m *MockConfig) Booking() config.BookingConfig {
	args := m.Called()
	return args.Get(0).(config.BookingConfig)
}

func (m *MockConfig) Retry() config.RetryConfig {
	args := m.Called()
	return args.Get(0).(config.RetryConfig)
}

// -- Page Client Mock --

// Element is a page.Element for scripted tests. Name only helps when reading
// failure output.
type Element struct {
	ID   int64
	Name string
}

func (e *Element) NodeID() int64 { return e.ID }

// MockPageClient mocks page.Client. Methods returning an element list accept a
// nil return value as an empty result.
type MockPageClient struct {
	mock.Mock
}

func (m *MockPageClient) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPageClient) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (page.Element, error) {
	args := m.Called(ctx, selector, timeout)
	el, _ := args.Get(0).(page.Element)
	return el, args.Error(1)
}

func (m *MockPageClient) SwitchToFrame(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockPageClient) SwitchToTop() {
	m.Called()
}

func (m *MockPageClient) SelectByVisibleText(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *MockPageClient) SelectByValue(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *MockPageClient) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockPageClient) ClickElement(ctx context.Context, el page.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockPageClient) IsChecked(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *MockPageClient) FindAll(ctx context.Context, selector string) ([]page.Element, error) {
	args := m.Called(ctx, selector)
	els, _ := args.Get(0).([]page.Element)
	return els, args.Error(1)
}

func (m *MockPageClient) FindAllIn(ctx context.Context, parent page.Element, selector string) ([]page.Element, error) {
	args := m.Called(ctx, parent, selector)
	els, _ := args.Get(0).([]page.Element)
	return els, args.Error(1)
}

func (m *MockPageClient) OuterHTML(ctx context.Context, el page.Element) (string, error) {
	args := m.Called(ctx, el)
	return args.String(0), args.Error(1)
}

func (m *MockPageClient) Text(ctx context.Context, el page.Element) (string, error) {
	args := m.Called(ctx, el)
	return args.String(0), args.Error(1)
}

func (m *MockPageClient) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
