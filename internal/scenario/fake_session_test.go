package scenario

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/roach88/replcheck/internal/command"
	"github.com/roach88/replcheck/internal/replica"
)

// fakeSession keeps the catalog in memory and records every call.
type fakeSession struct {
	scratch     string
	collections map[string]bool
	objects     map[string]map[string]replica.Status
	calls       []string

	failOn    map[string]error
	listCalls int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		scratch:     "/zone/home/rods/scratch",
		collections: map[string]bool{},
		objects:     map[string]map[string]replica.Status{},
		failOn:      map[string]error{},
	}
}

func (f *fakeSession) record(op string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	return f.failOn[op]
}

func (f *fakeSession) ScratchCollection() string { return f.scratch }

func (f *fakeSession) Resource(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty location key")
	}
	return "resc_" + key, nil
}

func (f *fakeSession) Options() command.Options { return command.Options{} }

func (f *fakeSession) MakeCollection(_ context.Context, p string) error {
	if err := f.record("mkdir", p); err != nil {
		return err
	}
	f.collections[p] = true
	return nil
}

func (f *fakeSession) Put(_ context.Context, p, key string) error {
	if err := f.record("put", p, key); err != nil {
		return err
	}
	f.objects[p] = map[string]replica.Status{"resc_" + key: replica.Good}
	return nil
}

func (f *fakeSession) Replicate(_ context.Context, p, key string) error {
	if err := f.record("repl", p, key); err != nil {
		return err
	}
	obj, ok := f.objects[p]
	if !ok {
		return fmt.Errorf("%s does not exist", p)
	}
	obj["resc_"+key] = replica.Good
	return nil
}

func (f *fakeSession) SetStatus(_ context.Context, p, key string, st replica.Status) error {
	if err := f.record("modrepl", p, key, st.Symbol()); err != nil {
		return err
	}
	f.objects[p]["resc_"+key] = st
	return nil
}

func (f *fakeSession) Replicas(_ context.Context, p string) ([]replica.Replica, error) {
	f.listCalls++
	if err := f.failOn["ls"]; err != nil {
		return nil, err
	}
	obj := f.objects[p]
	resources := make([]string, 0, len(obj))
	for r := range obj {
		resources = append(resources, r)
	}
	sort.Strings(resources)
	replicas := make([]replica.Replica, len(resources))
	for i, r := range resources {
		replicas[i] = replica.Replica{Number: i, Hierarchy: r, Status: obj[r]}
	}
	return replicas, nil
}

func (f *fakeSession) Exists(_ context.Context, p string) (bool, error) {
	if f.collections[p] {
		return true, nil
	}
	_, ok := f.objects[p]
	return ok, nil
}

func (f *fakeSession) Remove(_ context.Context, p string) error {
	if err := f.record("rm", p); err != nil {
		return err
	}
	for c := range f.collections {
		if c == p || strings.HasPrefix(c, p+"/") {
			delete(f.collections, c)
		}
	}
	for o := range f.objects {
		if path.Dir(o) == p || strings.HasPrefix(o, p+"/") {
			delete(f.objects, o)
		}
	}
	return nil
}
