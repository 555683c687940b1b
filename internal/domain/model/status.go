package model

// ServiceStatus is the view of the managed service rendered by operator surfaces.
type ServiceStatus struct {
	Service    string             `json:"service"`
	Supervisor string             `json:"supervisor"`
	Port       int                `json:"port"`
	Version    DeploymentMetadata `json:"version"`
	Active     bool               `json:"active"`
	Healthy    bool               `json:"healthy"`
	HealthErr  string             `json:"health_error,omitempty"`
	HasCurrent bool               `json:"has_current"`
	HasBackup  bool               `json:"has_backup"`
}

// AgentStatus adds agent-side state to ServiceStatus.
type AgentStatus struct {
	ServiceStatus
	ActiveJob    string            `json:"active_job,omitempty"`
	LastJob      *Job              `json:"last_job,omitempty"`
	Capabilities map[string]string `json:"capabilities"`
}
