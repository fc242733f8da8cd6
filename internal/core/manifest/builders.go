package manifest

import (
	"fmt"
	"sort"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Builder Params
// =============================================================================

// ResourceParams specifies compute resources in CPU millicores and memory bytes.
type ResourceParams struct {
	CPUMillis   int64
	MemoryBytes int64
}

// ProbeParams specifies an HTTP probe against the container port.
type ProbeParams struct {
	Path                string
	InitialDelaySeconds int
	PeriodSeconds       int
}

// AppParams parameterizes the application deployment document.
type AppParams struct {
	Name      string
	Image     domain.ImageRef
	Replicas  int
	Port      int
	Requests  ResourceParams
	Limits    ResourceParams
	Readiness ProbeParams
	Liveness  ProbeParams
	// Env values may contain credentials; they are treated as opaque strings
	// and never logged by this package.
	Env map[string]string
}

// PortMapping maps a service port to a target container port.
type PortMapping struct {
	Name       string
	Protocol   string
	Port       int
	TargetPort int
}

// ServiceParams parameterizes a service document.
type ServiceParams struct {
	Name     string
	Selector map[string]string
	Ports    []PortMapping
}

// DataParams parameterizes the data-tier deployment, claim, and service.
// The image is a fixed external dependency image, never built by the pipeline.
type DataParams struct {
	Name         string
	Image        string
	Port         int
	Credentials  map[string]string
	StorageBytes int64
	MountPath    string
}

// =============================================================================
// Application Documents
// =============================================================================

// AppDeployment builds the application deployment document. The image
// reference always pins the immutable per-run tag.
func AppDeployment(p AppParams) Document {
	labels := selectorLabels(p.Name)
	return Document{
		APIVersion: "apps/v1",
		Kind:       KindDeployment,
		Metadata:   Metadata{Name: p.Name, Labels: labels},
		Spec: DeploymentSpec{
			Replicas: p.Replicas,
			Selector: LabelSelector{MatchLabels: labels},
			Template: PodTemplate{
				Metadata: Metadata{Labels: labels},
				Spec: PodSpec{
					Containers: []Container{{
						Name:  p.Name,
						Image: p.Image.String(),
						Ports: []ContainerPort{{ContainerPort: p.Port}},
						Env:   envVars(p.Env),
						Resources: &ResourceRequirements{
							Requests: ResourceList{
								CPU:    FormatCPU(p.Requests.CPUMillis),
								Memory: FormatMemory(p.Requests.MemoryBytes),
							},
							Limits: ResourceList{
								CPU:    FormatCPU(p.Limits.CPUMillis),
								Memory: FormatMemory(p.Limits.MemoryBytes),
							},
						},
						ReadinessProbe: probe(p.Readiness, p.Port),
						LivenessProbe:  probe(p.Liveness, p.Port),
					}},
				},
			},
		},
	}
}

// AppService builds the service document exposing the application.
func AppService(p ServiceParams) Document {
	ports := make([]ServicePort, 0, len(p.Ports))
	for _, m := range p.Ports {
		proto := m.Protocol
		if proto == "" {
			proto = "TCP"
		}
		ports = append(ports, ServicePort{
			Name:       m.Name,
			Protocol:   proto,
			Port:       m.Port,
			TargetPort: m.TargetPort,
		})
	}
	return Document{
		APIVersion: "v1",
		Kind:       KindService,
		Metadata:   Metadata{Name: p.Name, Labels: selectorLabels(p.Name)},
		Spec: ServiceSpec{
			Selector: selectorLabels(p.Name),
			Ports:    ports,
		},
	}
}

// =============================================================================
// Data-Tier Documents
// =============================================================================

// DataVolumeClaim builds the storage claim backing the data tier. It must be
// applied before the deployment that mounts it; OrderSet enforces this.
func DataVolumeClaim(p DataParams) Document {
	return Document{
		APIVersion: "v1",
		Kind:       KindPersistentVolumeClaim,
		Metadata:   Metadata{Name: ClaimName(p.Name), Labels: selectorLabels(p.Name)},
		Spec: ClaimSpec{
			AccessModes: []string{"ReadWriteOnce"},
			Resources: ClaimResources{
				Requests: ClaimStorage{Storage: FormatMemory(p.StorageBytes)},
			},
		},
	}
}

// DataDeployment builds the data-tier deployment mounting the claim.
// Credentials are injected as env values and treated as opaque strings.
func DataDeployment(p DataParams) Document {
	labels := selectorLabels(p.Name)
	volumeName := p.Name + "-storage"
	container := Container{
		Name:  p.Name,
		Image: p.Image,
		Ports: []ContainerPort{{ContainerPort: p.Port}},
		Env:   envVars(p.Credentials),
	}
	if p.MountPath != "" {
		container.VolumeMounts = []VolumeMount{{Name: volumeName, MountPath: p.MountPath}}
	}
	spec := PodSpec{Containers: []Container{container}}
	if p.MountPath != "" {
		spec.Volumes = []Volume{{
			Name:                  volumeName,
			PersistentVolumeClaim: &PVCSource{ClaimName: ClaimName(p.Name)},
		}}
	}
	return Document{
		APIVersion: "apps/v1",
		Kind:       KindDeployment,
		Metadata:   Metadata{Name: p.Name, Labels: labels},
		Spec: DeploymentSpec{
			Replicas: 1,
			Selector: LabelSelector{MatchLabels: labels},
			Template: PodTemplate{
				Metadata: Metadata{Labels: labels},
				Spec:     spec,
			},
		},
	}
}

// DataService builds the service exposing the data tier to the application.
func DataService(p DataParams) Document {
	return AppService(ServiceParams{
		Name: p.Name,
		Ports: []PortMapping{{
			Name:       "client",
			Protocol:   "TCP",
			Port:       p.Port,
			TargetPort: p.Port,
		}},
	})
}

// ClaimName returns the claim document name for a data-tier name.
func ClaimName(dataName string) string {
	return dataName + "-data"
}

// SelectorLabels returns the label set used to select a workload's pods.
func SelectorLabels(name string) map[string]string {
	return selectorLabels(name)
}

func selectorLabels(name string) map[string]string {
	return map[string]string{"app": name}
}

// envVars converts an env map to a sorted list so output is deterministic.
func envVars(env map[string]string) []EnvVar {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make([]EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, EnvVar{Name: k, Value: env[k]})
	}
	return vars
}

func probe(p ProbeParams, port int) *Probe {
	if p.Path == "" {
		return nil
	}
	return &Probe{
		HTTPGet:             HTTPGetAction{Path: p.Path, Port: port},
		InitialDelaySeconds: p.InitialDelaySeconds,
		PeriodSeconds:       p.PeriodSeconds,
	}
}

// =============================================================================
// Quantity Formatting
// =============================================================================

const (
	kib = int64(1024)
	mib = kib * 1024
	gib = mib * 1024
)

// FormatCPU renders CPU millicores in the "250m" form.
func FormatCPU(millis int64) string {
	return fmt.Sprintf("%dm", millis)
}

// FormatMemory renders a byte count using the largest exact binary unit.
func FormatMemory(bytes int64) string {
	switch {
	case bytes > 0 && bytes%gib == 0:
		return fmt.Sprintf("%dGi", bytes/gib)
	case bytes > 0 && bytes%mib == 0:
		return fmt.Sprintf("%dMi", bytes/mib)
	case bytes > 0 && bytes%kib == 0:
		return fmt.Sprintf("%dKi", bytes/kib)
	default:
		return fmt.Sprintf("%d", bytes)
	}
}
