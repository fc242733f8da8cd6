package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

func testAppParams() AppParams {
	return AppParams{
		Name:     "web",
		Image:    domain.NewImageRef("registry.local/acme/web", 12),
		Replicas: 2,
		Port:     8080,
		Requests: ResourceParams{CPUMillis: 100, MemoryBytes: 128 * 1024 * 1024},
		Limits:   ResourceParams{CPUMillis: 500, MemoryBytes: 512 * 1024 * 1024},
		Readiness: ProbeParams{
			Path:                "/healthz",
			InitialDelaySeconds: 5,
			PeriodSeconds:       10,
		},
		Liveness: ProbeParams{
			Path:                "/healthz",
			InitialDelaySeconds: 20,
			PeriodSeconds:       20,
		},
		Env: map[string]string{
			"DB_HOST": "store",
			"DB_PASS": "hunter2",
		},
	}
}

func testDataParams() DataParams {
	return DataParams{
		Name:         "store",
		Image:        "postgres:16",
		Port:         5432,
		Credentials:  map[string]string{"POSTGRES_PASSWORD": "hunter2"},
		StorageBytes: 1024 * 1024 * 1024,
		MountPath:    "/var/lib/postgresql/data",
	}
}

// =============================================================================
// Rendering Tests
// =============================================================================

func TestRender_IsDeterministic(t *testing.T) {
	first, err := Render(AppDeployment(testAppParams()))
	require.NoError(t, err)
	second, err := Render(AppDeployment(testAppParams()))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRender_EnvSortedByName(t *testing.T) {
	text, err := Render(AppDeployment(testAppParams()))
	require.NoError(t, err)

	assert.Less(t, strings.Index(text, "DB_HOST"), strings.Index(text, "DB_PASS"))
}

func TestAppDeployment_PinsImmutableTag(t *testing.T) {
	text, err := Render(AppDeployment(testAppParams()))
	require.NoError(t, err)

	assert.Contains(t, text, "registry.local/acme/web:v12")
	assert.NotContains(t, text, ":latest")
}

func TestAppDeployment_ResourcesAndProbes(t *testing.T) {
	text, err := Render(AppDeployment(testAppParams()))
	require.NoError(t, err)

	assert.Contains(t, text, "cpu: 100m")
	assert.Contains(t, text, "memory: 128Mi")
	assert.Contains(t, text, "cpu: 500m")
	assert.Contains(t, text, "memory: 512Mi")
	assert.Contains(t, text, "path: /healthz")
	assert.Contains(t, text, "initialDelaySeconds: 5")
	assert.Contains(t, text, "periodSeconds: 10")
}

func TestAppService_PortMapping(t *testing.T) {
	doc := AppService(ServiceParams{
		Name:  "web",
		Ports: []PortMapping{{Name: "http", Port: 80, TargetPort: 8080}},
	})
	text, err := Render(doc)
	require.NoError(t, err)

	assert.Equal(t, KindService, doc.Kind)
	assert.Contains(t, text, "port: 80")
	assert.Contains(t, text, "targetPort: 8080")
	assert.Contains(t, text, "protocol: TCP")
}

func TestDataDeployment_MountsClaim(t *testing.T) {
	text, err := Render(DataDeployment(testDataParams()))
	require.NoError(t, err)

	assert.Contains(t, text, "claimName: store-data")
	assert.Contains(t, text, "mountPath: /var/lib/postgresql/data")
	assert.Contains(t, text, "image: postgres:16")
}

func TestDataVolumeClaim_StorageSize(t *testing.T) {
	text, err := Render(DataVolumeClaim(testDataParams()))
	require.NoError(t, err)

	assert.Contains(t, text, "storage: 1Gi")
	assert.Contains(t, text, "name: store-data")
}

func TestSetRender_MultiDocumentStream(t *testing.T) {
	set := Set{DataVolumeClaim(testDataParams()), DataDeployment(testDataParams())}
	text, err := set.Render()
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(text, "---"))
	assert.Less(t, strings.Index(text, "PersistentVolumeClaim"), strings.Index(text, "Deployment"))
}

// =============================================================================
// Ordering Tests
// =============================================================================

func TestOrderSet_ClaimPrecedesDeployment(t *testing.T) {
	data := testDataParams()
	set := Set{
		AppService(ServiceParams{Name: "web", Ports: []PortMapping{{Port: 80, TargetPort: 8080}}}),
		DataDeployment(data),
		DataVolumeClaim(data),
		AppDeployment(testAppParams()),
	}

	ordered := OrderSet(set)

	require.Len(t, ordered, 4)
	assert.Equal(t, KindPersistentVolumeClaim, ordered[0].Kind)
	assert.Equal(t, KindDeployment, ordered[1].Kind)
	assert.Equal(t, KindDeployment, ordered[2].Kind)
	assert.Equal(t, KindService, ordered[3].Kind)
	// Stable within kind: data deployment was listed before the app deployment.
	assert.Equal(t, "store", ordered[1].Metadata.Name)
	assert.Equal(t, "web", ordered[2].Metadata.Name)
}

func TestOrderSet_DoesNotMutateInput(t *testing.T) {
	set := Set{AppDeployment(testAppParams()), DataVolumeClaim(testDataParams())}
	_ = OrderSet(set)

	assert.Equal(t, KindDeployment, set[0].Kind)
}

// =============================================================================
// Quantity Formatting Tests
// =============================================================================

func TestFormatMemory(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"exact gibibytes", 2 * 1024 * 1024 * 1024, "2Gi"},
		{"exact mebibytes", 256 * 1024 * 1024, "256Mi"},
		{"exact kibibytes", 64 * 1024, "64Ki"},
		{"odd byte count", 1000, "1000"},
		{"zero", 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMemory(tt.bytes))
		})
	}
}

func TestFormatCPU(t *testing.T) {
	assert.Equal(t, "250m", FormatCPU(250))
}
