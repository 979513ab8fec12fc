package testutil

import (
	"reflect"
	"testing"
)

func TestCompareSnapshots(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{
			name: "differing ids are ignored",
			a:    `{"id":"one","version":"1.1.0","tree":{"name":"repo"}}`,
			b:    `{"tree":{"name":"repo"},"version":"1.1.0","id":"two"}`,
			want: true,
		},
		{
			name: "differing content is reported",
			a:    `{"id":"one","version":"1.1.0"}`,
			b:    `{"id":"one","version":"1.0.0"}`,
			want: false,
		},
		{
			name: "invalid json",
			a:    `{`,
			b:    `{}`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := CompareSnapshots([]byte(tt.a), []byte(tt.b))
			if got != tt.want {
				t.Errorf("CompareSnapshots() = %v (%s), want %v", got, msg, tt.want)
			}
		})
	}
}

func TestRemoveNestedField(t *testing.T) {
	data := map[string]interface{}{
		"id": "x",
		"metadata": map[string]interface{}{
			"git": map[string]interface{}{"reference_time": 1.0, "horizon_start": 2.0},
		},
	}

	removeNestedField(data, "metadata.git.reference_time")
	removeNestedField(data, "missing.field")
	removeNestedField(data, "")

	want := map[string]interface{}{
		"id": "x",
		"metadata": map[string]interface{}{
			"git": map[string]interface{}{"horizon_start": 2.0},
		},
	}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("removeNestedField() left %v, want %v", data, want)
	}
}
