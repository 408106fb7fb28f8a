package host

import (
	"reflect"
	"testing"
)

func noopHandler(params map[string]any) (any, error) {
	return nil, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Registration{Name: "get_scene_info", Handler: noopHandler, RequiresMainThread: true}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	reg, ok := r.Lookup("get_scene_info")
	if !ok {
		t.Fatal("registered handler not found")
	}
	if !reg.RequiresMainThread {
		t.Fatal("RequiresMainThread not preserved")
	}

	if _, ok := r.Lookup("bogus"); ok {
		t.Fatal("Lookup found an unregistered handler")
	}
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Registration{Name: "ping", Handler: noopHandler}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(Registration{Name: "ping", Handler: noopHandler}); err == nil {
		t.Fatal("duplicate registration accepted")
	}
	if err := r.Register(Registration{Handler: noopHandler}); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := r.Register(Registration{Name: "nil_handler"}); err == nil {
		t.Fatal("nil handler accepted")
	}
}

func TestRegistryRegisterAllRollsBack(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Registration{Name: "taken", Handler: noopHandler}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	err := r.RegisterAll(
		Registration{Name: "first", Handler: noopHandler},
		Registration{Name: "taken", Handler: noopHandler},
		Registration{Name: "never", Handler: noopHandler},
	)
	if err == nil {
		t.Fatal("RegisterAll() with a duplicate succeeded")
	}

	if _, ok := r.Lookup("first"); ok {
		t.Fatal("partial registration was not rolled back")
	}
	if _, ok := r.Lookup("never"); ok {
		t.Fatal("registration after the failure leaked in")
	}
	if _, ok := r.Lookup("taken"); !ok {
		t.Fatal("pre-existing handler lost during rollback")
	}
}

func TestRegistryDeregister(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		if err := r.Register(Registration{Name: name, Handler: noopHandler}); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	r.Deregister("b", "missing")

	if got, want := r.Names(), []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestRegistryDeactivateDiscardsHandlers(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Registration{Name: "get_scene_info", Handler: noopHandler}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	r.Deactivate()

	if _, ok := r.Lookup("get_scene_info"); ok {
		t.Fatal("handler survived deactivation")
	}
	if err := r.Register(Registration{Name: "late", Handler: noopHandler}); err == nil {
		t.Fatal("Register() succeeded on a deactivated registry")
	}

	r.Activate()

	if err := r.Register(Registration{Name: "late", Handler: noopHandler}); err != nil {
		t.Fatalf("Register() after Activate() error = %v", err)
	}
	if got, want := r.Names(), []string{"late"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}
