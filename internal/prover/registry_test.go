// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prover

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

func TestRegistryCreatesBuiltinKinds(t *testing.T) {
	r := NewRegistry()
	opts := Options{Logger: logging.Discard()}

	for _, kind := range []types.BackendKind{types.BackendLean, types.BackendCoq} {
		v, err := r.Create(kind, types.AdapterConfig{Command: string(kind)}, opts)
		if err != nil {
			t.Fatalf("Create(%s): %v", kind, err)
		}
		if v.Backend() != kind {
			t.Errorf("Backend() = %q, want %q", v.Backend(), kind)
		}
		if v.IsReady() {
			t.Errorf("%s adapter should not be ready before Initialize", kind)
		}
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("isabelle", types.AdapterConfig{}, Options{Logger: logging.Discard()})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
	if !strings.Contains(err.Error(), "supported") {
		t.Errorf("error should list the supported kinds, got: %v", err)
	}
}

func TestRegistryRegisterCustomKind(t *testing.T) {
	r := NewRegistry()
	r.Register("isabelle", func(cfg types.AdapterConfig, opts Options) Verifier {
		return &fakeVerifier{kind: "isabelle"}
	})

	v, err := r.Create("isabelle", types.AdapterConfig{}, Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Backend() != "isabelle" {
		t.Errorf("Backend() = %q, want isabelle", v.Backend())
	}

	want := []types.BackendKind{types.BackendCoq, "isabelle", types.BackendLean}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
}
