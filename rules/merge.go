package rules

import (
	"fmt"
	"strings"
)

const (
	labelAppType           = "appType"
	annotationAnnotateType = "annotateType"
	annotationApp          = "app"
	appTypeGeneric         = "generic"
	appTypeNoCredentials   = "nocredapp"
)

// mergeDefinitions applies delta on top of base and returns the result. base
// may be nil when the rule does not exist yet; it is modified in place
// otherwise.
//
// Scalar meta fields replace only when non-empty. Labels, annotations, inputs
// and extras merge key by key, and a null input or extra value deletes the
// key. Tasks, inputsMeta, outputsMeta and ioMap replace wholesale when the
// delta carries them. Derived and managed fields (id, status, phase,
// progress, timestamps) are never taken from the delta.
func mergeDefinitions(base, delta *RuleDefinition) *RuleDefinition {
	if base == nil {
		base = &RuleDefinition{Meta: RuleMeta{Name: delta.Meta.Name}}
	}

	if delta.APIVersion != "" {
		base.APIVersion = delta.APIVersion
	}
	if delta.Kind != "" {
		base.Kind = delta.Kind
	}
	if base.APIVersion == "" {
		base.APIVersion = DefaultAPIVersion
	}
	if base.Kind == "" {
		base.Kind = DefaultKind
	}

	m := &base.Meta
	if delta.Meta.Purpose != "" {
		m.Purpose = delta.Meta.Purpose
	}
	if delta.Meta.Description != "" {
		m.Description = delta.Meta.Description
	}
	if delta.Meta.ApplicationClassName != "" {
		m.ApplicationClassName = delta.Meta.ApplicationClassName
	}
	m.Labels = mergeStringSlices(m.Labels, delta.Meta.Labels)
	m.Annotations = mergeStringSlices(m.Annotations, delta.Meta.Annotations)
	for _, tag := range delta.Meta.Tags {
		m.Tags = appendUnique(m.Tags, tag)
	}

	s := &base.Spec
	if delta.Spec.Tasks != nil {
		s.Tasks = delta.Spec.Tasks
	}
	if delta.Spec.InputsMeta != nil {
		s.InputsMeta = delta.Spec.InputsMeta
	}
	if delta.Spec.OutputsMeta != nil {
		s.OutputsMeta = delta.Spec.OutputsMeta
	}
	if delta.Spec.IOMap != nil {
		s.IOMap = delta.Spec.IOMap
	}
	s.Inputs = mergeValues(s.Inputs, delta.Spec.Inputs)
	base.Extras = mergeValues(base.Extras, delta.Extras)

	for i := range s.Tasks {
		if s.Tasks[i].Type == "" {
			s.Tasks[i].Type = DefaultTaskType
		}
	}
	if s.Inputs == nil {
		s.Inputs = map[string]any{}
	}
	return base
}

func mergeStringSlices(dst, src map[string][]string) map[string][]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string][]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeValues(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return dst
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// resolveStatus decides the stored status. A caller status is an override
// only when the request sets statusOverridden and the status is valid;
// re-fetched documents carry the flag along, so an override stays in force
// until a request drops it. Otherwise the derived status wins. The second
// return value reports whether the stored status is an override.
func resolveStatus(requested Status, optIn bool, derived Status) (Status, bool) {
	if !optIn || !requested.Valid() {
		return derived, false
	}
	return requested, requested != derived
}

// primaryAppType picks the application type the rule is filed under from
// the appType tags of its tasks, ignoring the "nocredapp" placeholder. One
// candidate is used as-is; none falls back to "generic". With several
// candidates the caller's meta.labels.appType choice is used if it is one of
// them, otherwise the type is left undetermined.
func primaryAppType(def *RuleDefinition) (string, error) {
	if len(def.Spec.Tasks) == 0 {
		return "", nil
	}
	var candidates []string
	for _, t := range def.Spec.Tasks {
		for _, at := range t.AppTags[labelAppType] {
			at = strings.TrimSpace(at)
			if at == "" || strings.EqualFold(at, appTypeNoCredentials) {
				continue
			}
			candidates = appendUnique(candidates, at)
		}
	}
	switch len(candidates) {
	case 0:
		return appTypeGeneric, nil
	case 1:
		return candidates[0], nil
	}
	if chosen := def.Meta.Labels[labelAppType]; len(chosen) > 0 {
		for _, c := range candidates {
			if c == chosen[0] {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("tasks use multiple application types (%s); set meta.labels.appType to one of them",
		strings.Join(candidates, ", "))
}

func applyAppType(m *RuleMeta, appType string) {
	if m.Labels == nil {
		m.Labels = make(map[string][]string)
	}
	if m.Annotations == nil {
		m.Annotations = make(map[string][]string)
	}
	m.Labels[labelAppType] = []string{appType}
	m.Annotations[annotationAnnotateType] = []string{appType}
	m.Annotations[annotationApp] = []string{appType}
}
