package models

// BudgetConfig holds the USD cost ceilings. A zero ceiling disables that scope.
type BudgetConfig struct {
	MaxCostPerRequest float64 `json:"max_cost_per_request"`
	MaxDailyCost      float64 `json:"max_daily_cost"`
	MaxMonthlyCost    float64 `json:"max_monthly_cost"`
	MaxUserDailyCost  float64 `json:"max_user_daily_cost"`

	// WarningPercent raises the warning flag once spend reaches this share of a limit
	WarningPercent float64 `json:"warning_percent"`
	Currency       string  `json:"currency"`
}

// BudgetScope names the ceiling a status or refusal refers to
type BudgetScope string

const (
	BudgetScopeRequest BudgetScope = "per_request"
	BudgetScopeDaily   BudgetScope = "daily"
	BudgetScopeMonthly BudgetScope = "monthly"
	BudgetScopeUser    BudgetScope = "per_user"
)

// BudgetStatus is the derived spend view for one scope. It is never persisted.
type BudgetStatus struct {
	Scope       BudgetScope `json:"scope"`
	Spent       float64     `json:"spent"`
	Remaining   float64     `json:"remaining"`
	Limit       float64     `json:"limit"`
	PercentUsed float64     `json:"percent_used"`
	Warning     bool        `json:"warning"`
}

// NewBudgetStatus derives remaining, percent used and the warning flag
func NewBudgetStatus(scope BudgetScope, spent, limit, warningPercent float64) BudgetStatus {
	status := BudgetStatus{Scope: scope, Spent: spent, Limit: limit}
	if limit <= 0 {
		return status
	}
	status.Remaining = limit - spent
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	status.PercentUsed = spent / limit * 100
	status.Warning = warningPercent > 0 && status.PercentUsed >= warningPercent
	return status
}
