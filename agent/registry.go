package agent

import "github.com/phdev/Final-Assignment-Template/internal/registry"

// Global holds the agents a Temporal worker can run by name.
var Global = registry.New[Agent]()

func Register(agent Agent) {
	Global.Add(agent.Name(), agent)
}

func Get(name string) (Agent, bool) {
	return Global.Get(name)
}

func Del(name string) {
	Global.Del(name)
}

// Names lists the registered agents in sorted order.
func Names() []string {
	return Global.Names()
}
