package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/parkbook/internal/mocks"
	"github.com/xkilldash9x/parkbook/internal/page"
)

const bookingsTable = `
<table id="tab_bookingsPanel_tabPanel_deskBookings_welcomeBookedDesksUser">
  <thead>
    <tr><th>Location</th><th> Floor </th><th>Desk</th><th>From</th><th>To</th></tr>
  </thead>
  <tbody>
    <tr><td>London</td><td>Car Park Level -1</td><td>CP 12</td><td>13/09/2024 AM</td><td>13/09/2024 PM</td></tr>
    <tr><td>London</td><td>3</td><td>3.041</td><td>16/09/2024 AM</td><td>16/09/2024 PM</td></tr>
    <tr><td>London</td><td>Car Park Level -2</td><td>CP 40</td><td>20/09/2024 PM</td><td>20/09/2024 PM</td></tr>
    <tr><td>London</td><td>car park level -2</td><td>CP 41</td><td>23/09/2024 AM</td><td>23/09/2024 PM</td></tr>
    <tr><td>London</td><td>Car Park Level -1</td><td>CP 13</td><td>pending</td><td></td></tr>
  </tbody>
</table>`

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestExtractCarParkBookings(t *testing.T) {
	t.Run("keeps only car park rows", func(t *testing.T) {
		got, err := ExtractCarParkBookings(bookingsTable)
		require.NoError(t, err)

		want := []Booking{
			{Date: date(2024, 9, 13), Category: "Car Park Level -1", Raw: "13/09/2024 AM"},
			{Date: date(2024, 9, 20), Category: "Car Park Level -2", Raw: "20/09/2024 PM"},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("bookings mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no floor column means no bookings", func(t *testing.T) {
		got, err := ExtractCarParkBookings(`<table><tr><td>You have no bookings</td></tr></table>`)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("floor column without from column", func(t *testing.T) {
		got, err := ExtractCarParkBookings(`<table>
			<tr><th>Floor</th><th>Desk</th></tr>
			<tr><td>Car Park</td><td>CP 1</td></tr>
		</table>`)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("header row without th cells", func(t *testing.T) {
		got, err := ExtractCarParkBookings(`<table>
			<tr><td>From</td><td>Floor</td></tr>
			<tr><td>01/10/2024 AM</td><td>Car Park</td></tr>
		</table>`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, date(2024, 10, 1), got[0].Date)
	})

	t.Run("date without session suffix", func(t *testing.T) {
		got, err := ExtractCarParkBookings(`<table>
			<tr><th>Floor</th><th>From</th></tr>
			<tr><td>Car Park</td><td>02/10/2024 08:00</td></tr>
		</table>`)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, date(2024, 10, 2), got[0].Date)
	})

	t.Run("unpadded day and month", func(t *testing.T) {
		got, err := ExtractCarParkBookings(`<table>
			<tr><th>Floor</th><th>From</th></tr>
			<tr><td>Car Park</td><td>3/9/2024 AM</td></tr>
			<tr><td>Car Park</td><td>7/10/2024</td></tr>
			<tr><td>Car Park</td><td>04/1/2024 PM</td></tr>
		</table>`)
		require.NoError(t, err)
		want := []civil.Date{date(2024, 9, 3), date(2024, 10, 7), date(2024, 1, 4)}
		if diff := cmp.Diff(want, Dates(got)); diff != "" {
			t.Errorf("dates mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty snapshot", func(t *testing.T) {
		got, err := ExtractCarParkBookings("")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestContainsAndDates(t *testing.T) {
	bookings, err := ExtractCarParkBookings(bookingsTable)
	require.NoError(t, err)

	assert.True(t, Contains(bookings, date(2024, 9, 13)))
	assert.False(t, Contains(bookings, date(2024, 9, 16)), "desk rows are not car park bookings")
	assert.False(t, Contains(nil, date(2024, 9, 13)))
	assert.Equal(t, []civil.Date{date(2024, 9, 13), date(2024, 9, 20)}, Dates(bookings))
}

func TestReaderRead(t *testing.T) {
	const selector = "table#bookings"
	table := &mocks.Element{ID: 7, Name: "bookings"}

	t.Run("reads fresh html on every call", func(t *testing.T) {
		client := new(mocks.MockPageClient)
		client.On("WaitVisible", mock.Anything, selector, 30*time.Second).Return(table, nil).Twice()
		client.On("OuterHTML", mock.Anything, table).Return(`<table><tr><td>none</td></tr></table>`, nil).Once()
		client.On("OuterHTML", mock.Anything, table).Return(bookingsTable, nil).Once()

		r := NewReader(client, selector, 30*time.Second, zap.NewNop())

		first, err := r.Read(context.Background())
		require.NoError(t, err)
		assert.Empty(t, first)

		second, err := r.Read(context.Background())
		require.NoError(t, err)
		assert.Len(t, second, 2)

		client.AssertExpectations(t)
	})

	t.Run("timeout propagates", func(t *testing.T) {
		client := new(mocks.MockPageClient)
		client.On("WaitVisible", mock.Anything, selector, time.Second).Return(nil, page.ErrTimeout)

		r := NewReader(client, selector, time.Second, zap.NewNop())
		_, err := r.Read(context.Background())
		require.Error(t, err)
		assert.True(t, page.IsTimeout(err))
		client.AssertNotCalled(t, "OuterHTML", mock.Anything, mock.Anything)
	})

	t.Run("outer html failure", func(t *testing.T) {
		client := new(mocks.MockPageClient)
		client.On("WaitVisible", mock.Anything, selector, time.Second).Return(table, nil)
		client.On("OuterHTML", mock.Anything, table).Return("", errors.New("node detached"))

		r := NewReader(client, selector, time.Second, zap.NewNop())
		_, err := r.Read(context.Background())
		assert.ErrorContains(t, err, "node detached")
	})
}
