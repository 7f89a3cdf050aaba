package hooks

// asMap best-effort coerces a hook result Value into a string-keyed map, the
// shape most hook contracts (spec §4.8) use for their decision payloads
// ({cancel:true,...}, {allow:false}, {delivered:true,...}).
func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func boolField(m map[string]any, key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// CancelDecision is the {cancel:true, result:"..."} shape pre_tool may return.
type CancelDecision struct {
	Cancel bool
	Result string
}

// FindCancel scans results for the first one asking to cancel tool
// execution and substitute a result.
func FindCancel(results []Result) (CancelDecision, bool) {
	for _, r := range results {
		m, ok := asMap(r.Value)
		if !ok {
			continue
		}
		if cancel, ok := boolField(m, "cancel"); ok && cancel {
			result, _ := stringField(m, "result")
			return CancelDecision{Cancel: true, Result: result}, true
		}
	}
	return CancelDecision{}, false
}

// AllowDecision is the {allow:false} shape a pre_file_write hook may
// return to unilaterally deny (or, if allow:true, approve) an operation.
type AllowDecision struct {
	Allow bool
}

// FindAllow scans results for the first explicit allow/deny decision.
func FindAllow(results []Result) (AllowDecision, bool) {
	for _, r := range results {
		m, ok := asMap(r.Value)
		if !ok {
			continue
		}
		if allow, ok := boolField(m, "allow"); ok {
			return AllowDecision{Allow: allow}, true
		}
	}
	return AllowDecision{}, false
}

// DeliveredDecision is the {delivered:true, via:"..."} shape
// pre_send_message may return to intercept delivery.
type DeliveredDecision struct {
	Delivered bool
	Via       string
}

// FindDelivered scans results for the first delivery interception.
func FindDelivered(results []Result) (DeliveredDecision, bool) {
	for _, r := range results {
		m, ok := asMap(r.Value)
		if !ok {
			continue
		}
		if delivered, ok := boolField(m, "delivered"); ok && delivered {
			via, _ := stringField(m, "via")
			return DeliveredDecision{Delivered: true, Via: via}, true
		}
	}
	return DeliveredDecision{}, false
}
