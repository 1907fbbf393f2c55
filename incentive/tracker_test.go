package incentive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AlertsAtThresholdInCurrentWeek(t *testing.T) {
	tr := NewTracker(3)

	// Week of 3 March 2025 (ISO week 10)
	tr.RecordNoSale("Vivek", march(3))
	tr.RecordNoSale("vivek", march(4))
	tr.RecordNoSale("Vivek", march(7))
	tr.RecordNoSale("Gaurav", march(4))
	tr.RecordNoSale("Gaurav", march(5))
	// Previous week
	tr.RecordNoSale("Hemant", march(1))
	tr.RecordNoSale("Hemant", march(1))
	tr.RecordNoSale("Hemant", march(2))

	assert.Equal(t, 3, tr.Count("VIVEK", march(5)))

	alerts := tr.Alerts(march(7))
	require.Len(t, alerts, 1)
	assert.Equal(t, Alert{Staff: "Vivek", Year: 2025, Week: 10, Count: 3}, alerts[0])

	// Hemant's week
	alerts = tr.Alerts(march(2))
	require.Len(t, alerts, 1)
	assert.Equal(t, "Hemant", alerts[0].Staff)
}

func TestTracker_AlertOrder(t *testing.T) {
	tr := NewTracker(1)
	d := march(5)
	tr.RecordNoSale("Vivek", d)
	tr.RecordNoSale("Gaurav", d)
	tr.RecordNoSale("Shum", d)
	tr.RecordNoSale("Shum", d)

	alerts := tr.Alerts(d)

	var names []string
	for _, a := range alerts {
		names = append(names, a.Staff)
	}
	assert.Equal(t, []string{"Shum", "Gaurav", "Vivek"}, names)
}
