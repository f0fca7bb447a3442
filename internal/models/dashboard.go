package models

// DashboardStats is the admin landing page summary.
type DashboardStats struct {
	ActiveStudents     int     `json:"active_students"`
	TotalOutstanding   float64 `json:"total_outstanding"`
	OverdueDebts       int     `json:"overdue_debts"`
	CollectedThisMonth float64 `json:"collected_this_month"`
}
