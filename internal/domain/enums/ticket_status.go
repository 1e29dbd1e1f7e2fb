package enums

type TicketStatus string

const (
	TicketInProgress TicketStatus = "in-progress"
	TicketCompleted  TicketStatus = "completed"
)
