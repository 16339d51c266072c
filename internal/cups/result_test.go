package cups

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResultStore_QueryWithoutRunIsIdempotent(t *testing.T) {
	r := NewResultStore(3)

	for i := 0; i < 5; i++ {
		if got := r.Query(); got != NoResult {
			t.Fatalf("Query() #%d = %q, want %q", i, got, NoResult)
		}
	}
	if diff := cmp.Diff([]string{"", "", ""}, r.Slots()); diff != "" {
		t.Errorf("slots changed by queries (-want +got):\n%s", diff)
	}
}

func TestResultStore_Publish(t *testing.T) {
	tests := []struct {
		name    string
		slots   []string
		want    string
		wantErr bool
	}{
		{name: "all filled", slots: []string{"red", "blue", "green"}, want: "red,blue,green"},
		{name: "partial", slots: []string{"red", "", "green"}, want: NoResult},
		{name: "wrong length", slots: []string{"red"}, want: NoResult, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResultStore(3)
			err := r.Publish(tt.slots)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := r.Query(); got != tt.want {
				t.Errorf("Query() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResultStore_PublishCopies(t *testing.T) {
	r := NewResultStore(2)
	slots := []string{"red", "blue"}
	if err := r.Publish(slots); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	slots[0] = "yellow"

	if got := r.Query(); got != "red,blue" {
		t.Errorf("Query() = %q, caller mutation leaked into the store", got)
	}
}

func TestResultStore_ConcurrentAccess(t *testing.T) {
	r := NewResultStore(3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := r.Query(); got != NoResult && got != "red,blue,green" {
					t.Errorf("Query() = %q, saw a partial result", got)
					return
				}
			}
		}()
	}

	if err := r.Publish([]string{"red", "blue", "green"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	wg.Wait()
}
