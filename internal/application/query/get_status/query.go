package get_status

// GetStatusQuery represents a query for the managed service and agent state
type GetStatusQuery struct{}

// Name returns the name of the query
func (q GetStatusQuery) Name() string {
	return "GetStatus"
}
