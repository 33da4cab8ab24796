package domain

const policyKeySeparator = "--"

// RetryPolicy is the configured retry rule for a process, optionally
// narrowed to a single method. Loaded in full from the config store and
// served from a cache; immutable once loaded.
type RetryPolicy struct {
	ProcessName                 string
	MethodName                  string
	MaxRetryCount               int
	RetryIntervalMinutes        int
	StartFirstRetryAfterMinutes int
	Active                      bool
}

// Key returns the lookup key this policy is stored under.
func (p RetryPolicy) Key() string {
	return PolicyKey(p.ProcessName, p.MethodName)
}

// PolicyKey builds the resolver lookup key. A blank method keys the policy
// by process name alone; otherwise the key is "process--method".
func PolicyKey(processName, methodName string) string {
	if methodName == "" {
		return processName
	}
	return processName + policyKeySeparator + methodName
}
