package sheetsync

import "testing"

func TestDiff_Empty(t *testing.T) {
	tests := []struct {
		name string
		diff Diff
		want bool
	}{
		{"both empty", Diff{}, true},
		{"new rows only", Diff{NewRows: [][]interface{}{{1}}}, false},
		{"delete ids only", Diff{DeleteIDs: []interface{}{1}}, false},
		{"both set", Diff{NewRows: [][]interface{}{{1}}, DeleteIDs: []interface{}{2}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.diff.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiff_DeleteSet(t *testing.T) {
	diff := Diff{DeleteIDs: []interface{}{1, "2", float64(3), "", nil, int64(1)}}

	set := diff.DeleteSet()
	if len(set) != 3 {
		t.Fatalf("DeleteSet() has %d entries, want 3: %v", len(set), set)
	}
	for _, key := range []string{"1", "2", "3"} {
		if _, ok := set[key]; !ok {
			t.Errorf("DeleteSet() missing %q", key)
		}
	}
}

func TestApplyResult_Message(t *testing.T) {
	tests := []struct {
		result ApplyResult
		want   string
	}{
		{ApplyResult{}, "0 added, 0 removed"},
		{ApplyResult{Added: 2, Deleted: 1}, "2 added, 1 removed"},
	}

	for _, tt := range tests {
		if got := tt.result.Message(); got != tt.want {
			t.Errorf("Message() = %q, want %q", got, tt.want)
		}
	}
}
