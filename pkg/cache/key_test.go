package cache

import (
	"testing"
)

func TestSignature_Deterministic(t *testing.T) {
	params := map[string]string{"q": "test", "sort": "stars", "order": "desc"}

	first := Signature("/search/repositories", params)
	for i := 0; i < 10; i++ {
		if got := Signature("/search/repositories", params); got != first {
			t.Fatalf("Signature() not deterministic: %s != %s", got, first)
		}
	}
}

func TestSignature_InsertionOrderIndependent(t *testing.T) {
	a := map[string]string{}
	a["q"] = "test"
	a["sort"] = "stars"
	a["order"] = "desc"

	b := map[string]string{}
	b["order"] = "desc"
	b["sort"] = "stars"
	b["q"] = "test"

	if Signature("/search/repositories", a) != Signature("/search/repositories", b) {
		t.Error("Signature() differs for the same parameter set in different insertion order")
	}
}

func TestSignature_Distinguishes(t *testing.T) {
	tests := []struct {
		name               string
		endpointA          string
		paramsA            map[string]string
		endpointB          string
		paramsB            map[string]string
		wantEqual          bool
	}{
		{
			name:      "different endpoints",
			endpointA: "/repos/acme/widget",
			paramsA:   nil,
			endpointB: "/repos/acme/gadget",
			paramsB:   nil,
			wantEqual: false,
		},
		{
			name:      "different param values",
			endpointA: "/search/repositories",
			paramsA:   map[string]string{"q": "alpha"},
			endpointB: "/search/repositories",
			paramsB:   map[string]string{"q": "beta"},
			wantEqual: false,
		},
		{
			name:      "nil and empty params collide",
			endpointA: "/search/repositories",
			paramsA:   nil,
			endpointB: "/search/repositories",
			paramsB:   map[string]string{},
			wantEqual: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sigA := Signature(tt.endpointA, tt.paramsA)
			sigB := Signature(tt.endpointB, tt.paramsB)
			if (sigA == sigB) != tt.wantEqual {
				t.Errorf("Signature equality = %v, want %v", sigA == sigB, tt.wantEqual)
			}
		})
	}
}

func TestCanonicalParams_SortedKeys(t *testing.T) {
	got := string(CanonicalParams(map[string]string{"z": "1", "a": "2", "m": "3"}))
	want := `{"a":"2","m":"3","z":"1"}`
	if got != want {
		t.Errorf("CanonicalParams() = %s, want %s", got, want)
	}
}
