// Package manifest builds declarative configuration documents from typed
// parameters and renders them to YAML only at the boundary. Rendering is
// deterministic: identical params always yield byte-identical output.
package manifest

// =============================================================================
// Document Model
// =============================================================================

// Kind is the logical kind of a document, used for ordering and for status
// queries after apply.
type Kind string

const (
	KindPersistentVolumeClaim Kind = "PersistentVolumeClaim"
	KindDeployment            Kind = "Deployment"
	KindService               Kind = "Service"
)

// Document is a single declarative configuration document.
type Document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       Kind     `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       any      `yaml:"spec"`
}

// Metadata names and labels a document.
type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Set is an ordered collection of documents applied as one unit.
type Set []Document

// =============================================================================
// Workload Spec Types
// =============================================================================

type DeploymentSpec struct {
	Replicas int           `yaml:"replicas"`
	Selector LabelSelector `yaml:"selector"`
	Template PodTemplate   `yaml:"template"`
}

type LabelSelector struct {
	MatchLabels map[string]string `yaml:"matchLabels"`
}

type PodTemplate struct {
	Metadata Metadata `yaml:"metadata"`
	Spec     PodSpec  `yaml:"spec"`
}

type PodSpec struct {
	Containers []Container `yaml:"containers"`
	Volumes    []Volume    `yaml:"volumes,omitempty"`
}

type Container struct {
	Name           string                `yaml:"name"`
	Image          string                `yaml:"image"`
	Ports          []ContainerPort       `yaml:"ports,omitempty"`
	Env            []EnvVar              `yaml:"env,omitempty"`
	Resources      *ResourceRequirements `yaml:"resources,omitempty"`
	ReadinessProbe *Probe                `yaml:"readinessProbe,omitempty"`
	LivenessProbe  *Probe                `yaml:"livenessProbe,omitempty"`
	VolumeMounts   []VolumeMount         `yaml:"volumeMounts,omitempty"`
}

type ContainerPort struct {
	ContainerPort int `yaml:"containerPort"`
}

type EnvVar struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type ResourceRequirements struct {
	Requests ResourceList `yaml:"requests"`
	Limits   ResourceList `yaml:"limits"`
}

type ResourceList struct {
	CPU    string `yaml:"cpu"`
	Memory string `yaml:"memory"`
}

type Probe struct {
	HTTPGet             HTTPGetAction `yaml:"httpGet"`
	InitialDelaySeconds int           `yaml:"initialDelaySeconds"`
	PeriodSeconds       int           `yaml:"periodSeconds"`
}

type HTTPGetAction struct {
	Path string `yaml:"path"`
	Port int    `yaml:"port"`
}

type Volume struct {
	Name                  string     `yaml:"name"`
	PersistentVolumeClaim *PVCSource `yaml:"persistentVolumeClaim,omitempty"`
}

type PVCSource struct {
	ClaimName string `yaml:"claimName"`
}

type VolumeMount struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
}

// =============================================================================
// Service and Claim Spec Types
// =============================================================================

type ServiceSpec struct {
	Selector map[string]string `yaml:"selector"`
	Ports    []ServicePort     `yaml:"ports"`
}

type ServicePort struct {
	Name       string `yaml:"name,omitempty"`
	Protocol   string `yaml:"protocol"`
	Port       int    `yaml:"port"`
	TargetPort int    `yaml:"targetPort"`
}

type ClaimSpec struct {
	AccessModes []string       `yaml:"accessModes"`
	Resources   ClaimResources `yaml:"resources"`
}

type ClaimResources struct {
	Requests ClaimStorage `yaml:"requests"`
}

type ClaimStorage struct {
	Storage string `yaml:"storage"`
}
