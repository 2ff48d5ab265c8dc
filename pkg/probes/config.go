package probes

import (
	corev1 "k8s.io/api/core/v1"
)

// ConfigsFromPod translates every container's Startup/Liveness/Readiness
// probe spec into Configs ready for Tracker.RegisterPod. A container
// with no probe of a given kind contributes nothing for that kind.
func ConfigsFromPod(pod *corev1.Pod) []Config {
	podKey := pod.Namespace + "/" + pod.Name
	var out []Config
	for _, c := range pod.Spec.Containers {
		if cfg, ok := configFromProbe(podKey, c.Name, Startup, c.StartupProbe); ok {
			out = append(out, cfg)
		}
		if cfg, ok := configFromProbe(podKey, c.Name, Liveness, c.LivenessProbe); ok {
			out = append(out, cfg)
		}
		if cfg, ok := configFromProbe(podKey, c.Name, Readiness, c.ReadinessProbe); ok {
			out = append(out, cfg)
		}
	}
	return out
}

func configFromProbe(podKey, container string, kind Kind, probe *corev1.Probe) (Config, bool) {
	if probe == nil {
		return Config{}, false
	}
	action := actionFromHandler(probe)
	// A named port resolves to 0 here; such probes are not registered.
	if (action.HTTPGet != nil && action.HTTPGet.Port == 0) || (action.TCPSocket != nil && action.TCPSocket.Port == 0) {
		return Config{}, false
	}
	return Config{
		Pod:                 podKey,
		Container:           container,
		Kind:                kind,
		Action:              action,
		InitialDelaySeconds: int(probe.InitialDelaySeconds),
		PeriodSeconds:       int(probe.PeriodSeconds),
		TimeoutSeconds:      int(probe.TimeoutSeconds),
		FailureThreshold:    int(probe.FailureThreshold),
		SuccessThreshold:    int(probe.SuccessThreshold),
	}, true
}

// actionFromHandler picks the one action a corev1.Probe's handler union
// actually sets. GRPC probes aren't modeled (spec.md §4.H covers
// exec/httpGet/tcpSocket only) and fall through to an empty Action, which
// ZoneExecutor reports as a failed check.
func actionFromHandler(probe *corev1.Probe) Action {
	switch {
	case probe.Exec != nil:
		return Action{Exec: probe.Exec.Command}
	case probe.HTTPGet != nil:
		return Action{HTTPGet: &HTTPGetAction{
			Path:   probe.HTTPGet.Path,
			Port:   probe.HTTPGet.Port.IntValue(),
			Host:   probe.HTTPGet.Host,
			Scheme: string(probe.HTTPGet.Scheme),
		}}
	case probe.TCPSocket != nil:
		return Action{TCPSocket: &TCPSocketAction{
			Port: probe.TCPSocket.Port.IntValue(),
			Host: probe.TCPSocket.Host,
		}}
	default:
		return Action{}
	}
}
