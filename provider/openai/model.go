package openai

import (
	"strconv"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/phdev/Final-Assignment-Template/internal/registry"
	"github.com/phdev/Final-Assignment-Template/provider"
)

// modelRegistry memoizes models by name and temperature so every agent that
// asks for the same model shares one client.
var modelRegistry = registry.New[provider.Model]()

func GPT4oMini(opts ...option.RequestOption) provider.Model {
	return Model(openai.ChatModelGPT4oMini, 0, opts...)
}

func GPT4o(opts ...option.RequestOption) provider.Model {
	return Model(openai.ChatModelGPT4o, 0, opts...)
}

// Model returns the registered model for name and temperature, creating it
// with opts on first use. Later calls ignore opts.
func Model(name string, temperature float64, opts ...option.RequestOption) provider.Model {
	key := name + "@" + strconv.FormatFloat(temperature, 'g', -1, 64)
	m, _ := modelRegistry.GetOrAdd(key, func() provider.Model {
		return NewModel(name, temperature, opts...)
	})
	return m
}

// NewModel builds a model outside the registry.
func NewModel(name string, temperature float64, opts ...option.RequestOption) provider.Model {
	return &model{
		name:        name,
		temperature: temperature,
		opts:        opts,
	}
}

var _ provider.Model = (*model)(nil)

type model struct {
	name        string
	temperature float64
	opts        []option.RequestOption

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Temperature() float64 {
	return m.temperature
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
