package models

// Overview holds the headline counters of the admin dashboard.
type Overview struct {
	TotalReports      int     `json:"totalReports"`
	PendingReports    int     `json:"pendingReports"`
	InProgressReports int     `json:"inProgressReports"`
	ResolvedReports   int     `json:"resolvedReports"`
	CriticalReports   int     `json:"criticalReports"`
	ReportsThisWeek   int     `json:"reportsThisWeek"`
	ReportsThisMonth  int     `json:"reportsThisMonth"`
	TotalUsers        int     `json:"totalUsers"`
	ActiveUsers       int     `json:"activeUsers"`
	AvgResolutionDays float64 `json:"avgResolutionDays"`
}

// TypeCount is one bucket of a group-by-type aggregation.
type TypeCount struct {
	Type  ReportType `json:"_id"`
	Count int        `json:"count"`
}

// DashboardStats is the payload of the admin dashboard.
type DashboardStats struct {
	Overview               Overview    `json:"overview"`
	ReportsByType          []TypeCount `json:"reportsByType"`
	CriticalReportsDetails []Report    `json:"criticalReportsDetails"`
}

// TrendPoint counts reports created on one UTC day.
type TrendPoint struct {
	Date     string `json:"_id"`
	Count    int    `json:"count"`
	Resolved int    `json:"resolved"`
}

// ResolutionByType is the average time-to-resolve for one report type.
type ResolutionByType struct {
	Type               ReportType `json:"_id"`
	AvgResolutionHours float64    `json:"avgResolutionHours"`
	Count              int        `json:"count"`
}

// StaffPerformance summarizes the resolved workload of one assignee.
type StaffPerformance struct {
	UserID            string  `json:"_id"`
	Name              string  `json:"name"`
	ResolvedCount     int     `json:"resolvedCount"`
	AvgResolutionTime float64 `json:"avgResolutionTime"`
}

// Performance bundles the performance analytics.
type Performance struct {
	ResolutionByType []ResolutionByType `json:"resolutionByType"`
	StaffPerformance []StaffPerformance `json:"staffPerformance"`
}

// ReportSummary counts one reporter's reports by progress.
type ReportSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
}

// Pagination describes a page of a filtered listing.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

// NewPagination computes the page count for total items split into limit-sized pages.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Current: page, Pages: pages, Total: total}
}
