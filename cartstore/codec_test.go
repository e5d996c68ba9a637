package cartstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []LineItem
	}{
		{
			name:    "list",
			payload: `[{"id":"1","title":"A","image_url":"u1","price":10,"quantity":2}]`,
			want:    []LineItem{{ID: "1", Title: "A", ImageURL: "u1", Price: 10, Quantity: 2}},
		},
		{
			name:    "blank",
			payload: " \n",
			want:    []LineItem{},
		},
		{
			name:    "empty list",
			payload: `[]`,
			want:    []LineItem{},
		},
		{
			name:    "updated item",
			payload: ` {"id":"1","title":"A","image_url":"u1","price":10,"quantity":0}`,
			want:    []LineItem{{ID: "1", Title: "A", ImageURL: "u1", Price: 10, Quantity: 0}},
		},
		{
			name:    "add candidate without quantity",
			payload: `{"id":"7","title":"Mug","image_url":"u7","price":3.5}`,
			want:    []LineItem{{ID: "7", Title: "Mug", ImageURL: "u7", Price: 3.5, Quantity: 1}},
		},
		{
			name:    "duplicate ids merge",
			payload: `[{"id":"1","title":"A","quantity":1},{"id":"2","quantity":1},{"id":"1","title":"B","quantity":2}]`,
			want:    []LineItem{{ID: "1", Title: "A", Quantity: 3}, {ID: "2", Quantity: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decode(tt.payload)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	for _, payload := range []string{"garbage", `{"id":`, `"str"`, `[{"id":"1","quantity":-1}]`} {
		if _, err := decode(payload); !errors.Is(err, ErrCorruptPayload) {
			t.Errorf("decode(%q) = %v, want ErrCorruptPayload", payload, err)
		}
	}
}

func TestParsePersistMode(t *testing.T) {
	for in, want := range map[string]PersistMode{"": PersistMutation, "mutation": PersistMutation, "snapshot": PersistSnapshot} {
		got, err := ParsePersistMode(in)
		if err != nil || got != want {
			t.Errorf("ParsePersistMode(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParsePersistMode("full"); err == nil {
		t.Error("ParsePersistMode(\"full\") succeeded")
	}
}
