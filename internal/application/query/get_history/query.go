package get_history

// GetHistoryQuery represents a query for recent jobs, newest first
type GetHistoryQuery struct {
	Limit int
}

// Name returns the name of the query
func (q GetHistoryQuery) Name() string {
	return "GetHistory"
}
