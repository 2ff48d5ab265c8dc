package zoneruntime

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/CloudNebulaProject/reddwarf/pkg/ipam"
)

func testAlloc() *ipam.Allocation {
	return &ipam.Allocation{
		IP:        net.ParseIP("10.0.0.2"),
		Gateway:   net.ParseIP("10.0.0.1"),
		PrefixLen: 24,
	}
}

func TestBuildZoneConfigDefaultsToReddwarfBrand(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: "default", Name: "web-1"},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{
				Name:    "main",
				Command: []string{"/bin/server"},
				Args:    []string{"--port=8080"},
				Resources: corev1.ResourceRequirements{
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("1500m"),
						corev1.ResourceMemory: resource.MustParse("512Mi"),
					},
				},
			}},
		},
	}

	cfg := BuildZoneConfig(pod, testAlloc(), "stub0")

	assert.Equal(t, BrandReddwarf, cfg.Brand)
	assert.Equal(t, ZoneName("default", "web-1"), cfg.Name)
	assert.Equal(t, "/zones/"+cfg.Name, cfg.ZonePath)
	assert.Equal(t, "1.50", cfg.CPUCap)
	assert.Equal(t, "512M", cfg.MemoryCap)
	assert.Equal(t, "10.0.0.2", cfg.Network.IP)
	assert.Equal(t, "10.0.0.1", cfg.Network.Gateway)
	assert.Equal(t, []string{"/bin/server", "--port=8080"}, cfg.Processes[0].Command)
}

func TestBuildZoneConfigLXBrandFromAnnotation(t *testing.T) {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:   "default",
			Name:        "legacy",
			Annotations: map[string]string{BrandAnnotation: "lx", "reddwarf.io/lx-image": "/images/u22.tar.gz"},
		},
		Spec: corev1.PodSpec{Containers: []corev1.Container{{Name: "main"}}},
	}

	cfg := BuildZoneConfig(pod, testAlloc(), "stub0")
	assert.Equal(t, BrandLX, cfg.Brand)
	assert.Equal(t, "/images/u22.tar.gz", cfg.LXImage)
}

func TestMemoryCapPicksLargestCleanUnit(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"1Gi", "1G"},
		{"1536Mi", "1536M"},
		{"2048Mi", "2G"},
		{"512Ki", "512K"},
	}
	for _, tc := range cases {
		pod := &corev1.Pod{Spec: corev1.PodSpec{Containers: []corev1.Container{{
			Resources: corev1.ResourceRequirements{Requests: corev1.ResourceList{
				corev1.ResourceMemory: resource.MustParse(tc.value),
			}},
		}}}}
		assert.Equal(t, tc.want, memoryCapString(pod), "for %s", tc.value)
	}
}

func TestZoneNameSanitizesAndTruncates(t *testing.T) {
	name := ZoneName("my_ns", "my_pod")
	assert.Equal(t, "reddwarf-my-ns-my-pod", name)

	long := ZoneName("a-namespace-that-is-quite-long-indeed", "and-a-very-long-pod-name-as-well-too")
	assert.LessOrEqual(t, len(long), 64)
}
