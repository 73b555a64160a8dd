// File: internal/collector/registry_test.go
package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCollector records the hooks invoked on it and can be made to fail.
type fakeCollector struct {
	id     string
	calls  []string
	fail   bool
	data   any
	record *[]string
}

func (f *fakeCollector) ID() string { return f.id }

func (f *fakeCollector) hook(name string) error {
	f.calls = append(f.calls, name)
	if f.record != nil {
		*f.record = append(*f.record, f.id+":"+name)
	}
	if f.fail {
		return errors.New("boom")
	}
	return nil
}

func (f *fakeCollector) Init(context.Context, InitOptions) error         { return f.hook("init") }
func (f *fakeCollector) AddTarget(context.Context, *TargetHandle) error  { return f.hook("addTarget") }
func (f *fakeCollector) AddListener(context.Context, *TargetHandle) error {
	return f.hook("addListener")
}
func (f *fakeCollector) PostLoad(context.Context) error { return f.hook("postLoad") }
func (f *fakeCollector) GetData(context.Context) (any, error) {
	if err := f.hook("getData"); err != nil {
		return nil, err
	}
	return f.data, nil
}

func TestRegistryOrderAndIsolation(t *testing.T) {
	var order []string
	a := &fakeCollector{id: "a", record: &order}
	b := &fakeCollector{id: "b", fail: true, record: &order}
	c := &fakeCollector{id: "c", record: &order}
	reg := NewRegistry(zap.NewNop(), a, b, c)

	ctx := context.Background()
	reg.InitAll(ctx, InitOptions{})
	reg.AddTargetAll(ctx, &TargetHandle{ID: "t1", Kind: KindIframe})
	reg.PostLoadAll(ctx)

	// The failing collector never blocks its siblings, and order is
	// registration order for every hook.
	assert.Equal(t, []string{
		"a:init", "b:init", "c:init",
		"a:addTarget", "b:addTarget", "c:addTarget",
		"a:postLoad", "b:postLoad", "c:postLoad",
	}, order)
}

func TestRegistryDataAll(t *testing.T) {
	a := &fakeCollector{id: "a", data: 42}
	b := &fakeCollector{id: "b", fail: true}
	reg := NewRegistry(zap.NewNop(), a, b)

	data := reg.DataAll(context.Background())
	require.Len(t, data, 1)
	assert.Equal(t, 42, data["a"])
	_, ok := data["b"]
	assert.False(t, ok, "failing collector must not contribute an entry")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPage, KindOf("page"))
	assert.Equal(t, KindIframe, KindOf("iframe"))
	assert.Equal(t, KindWorker, KindOf("worker"))
	assert.Equal(t, KindServiceWorker, KindOf("service_worker"))
	assert.Equal(t, KindOther, KindOf("browser"))
}
