package billing

// SubscribeRequest - DTO for POST /billing/subscriptions
type SubscribeRequest struct {
	UserID    string `json:"userId" binding:"required"`
	PlanKey   string `json:"planKey" binding:"required"`
	SessionID string `json:"sessionId"`
}

// UpgradeClickRequest - DTO for POST /billing/upgrade-click
type UpgradeClickRequest struct {
	UserID    string `json:"userId"`
	PlanKey   string `json:"planKey"`
	SessionID string `json:"sessionId"`
	Source    string `json:"source" binding:"omitempty,max=120"`
}
