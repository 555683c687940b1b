package get_job_log

// GetJobLogQuery represents a query for a job and its log lines from Offset
type GetJobLogQuery struct {
	JobID  string
	Offset int
}

// Name returns the name of the query
func (q GetJobLogQuery) Name() string {
	return "GetJobLog"
}
