package tenant

// HasRemainingQuota reports whether the record may consume more pages this
// period. It is a pure function of the snapshot passed in; callers must load
// a fresh record for the answer to mean anything.
func HasRemainingQuota(r *Record) bool {
	if r.MonthlyQuota == UnlimitedQuota {
		return true
	}
	return r.CurrentUsage < r.MonthlyQuota
}
