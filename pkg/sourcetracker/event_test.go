package sourcetracker_test

import (
	"sort"
	"testing"

	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

func TestEvent_ChangedFields(t *testing.T) {
	tests := []struct {
		name  string
		event sourcetracker.Event
		want  []string
	}{
		{
			name: "from changes only",
			event: sourcetracker.Event{
				Changes: []sourcetracker.Change{{Field: "status"}, {Field: "assigned_to"}},
			},
			want: []string{"status", "assigned_to"},
		},
		{
			name: "from routing key only",
			event: sourcetracker.Event{
				RoutingKey: "bug.modify:resolution",
			},
			want: []string{"resolution"},
		},
		{
			name: "union of both",
			event: sourcetracker.Event{
				Changes:    []sourcetracker.Change{{Field: "status"}},
				RoutingKey: "bug.modify:status",
			},
			want: []string{"status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.ChangedFields()
			sort.Strings(got)
			want := append([]string(nil), tt.want...)
			sort.Strings(want)

			if len(got) != len(want) {
				t.Fatalf("ChangedFields() = %v, want %v", got, want)
			}
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("ChangedFields() = %v, want %v", got, want)
				}
			}
		})
	}
}

func TestEvent_HasChangedField(t *testing.T) {
	e := sourcetracker.Event{Changes: []sourcetracker.Change{{Field: "status"}}}
	if !e.HasChangedField("status") {
		t.Errorf("expected HasChangedField(status) to be true")
	}
	if e.HasChangedField("resolution") {
		t.Errorf("expected HasChangedField(resolution) to be false")
	}
}
