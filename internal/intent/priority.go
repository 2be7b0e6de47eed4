package intent

import "math"

// Priority levels (lower number = higher priority):
// 1 critical, 2 high, 3 medium, 4 normal, 5 low.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityNormal   = 4
	PriorityLow      = 5
)

var basePriority = map[Intent]int{
	Escalation: PriorityCritical,
	Complaint:  PriorityHigh,
	Support:    PriorityMedium,
	Sales:      PriorityMedium,
	FAQ:        PriorityNormal,
	General:    PriorityNormal,
	Feedback:   PriorityLow,
}

// PriorityScore is a computed priority with a human-readable trail of
// the adjustments applied.
type PriorityScore struct {
	Priority int
	Reason   string
}

// ComputePriority scores a message for routing. Adjustments apply in a
// fixed order: VIP boost, high-confidence boost, persistence boost.
func ComputePriority(in Intent, confidence float64, isVIP bool, messageCount int) PriorityScore {
	priority, ok := basePriority[in]
	if !ok {
		priority = PriorityNormal
	}
	reason := "Base priority for " + string(in)

	if isVIP && priority > 1 {
		priority--
		reason += ", VIP user boost"
	}

	if (in == Escalation || in == Complaint) && confidence > 0.85 {
		priority = max(1, priority-1)
		reason += ", high confidence boost"
	}

	// Repeated messages without resolution signal frustration.
	if messageCount > 3 && priority > 2 {
		priority = max(2, priority-1)
		reason += ", conversation persistence boost"
	}

	priority = max(1, min(5, priority))

	return PriorityScore{Priority: priority, Reason: reason}
}

// ShouldFastTrack reports whether a message skips normal queue ordering.
func ShouldFastTrack(in Intent, isVIP bool) bool {
	return in == Escalation || (in == Complaint && isVIP)
}

// QueueType is the staffing queue an escalation lands in.
type QueueType string

const (
	QueueSupport   QueueType = "SUPPORT"
	QueueSales     QueueType = "SALES"
	QueueComplaint QueueType = "COMPLAINT"
	QueueTechnical QueueType = "TECHNICAL"
	QueueGeneral   QueueType = "GENERAL"
)

// QueueTypeFor maps an intent to the escalation queue that handles it.
func QueueTypeFor(in Intent) QueueType {
	switch in {
	case Support:
		return QueueSupport
	case Sales:
		return QueueSales
	case Complaint, Escalation:
		return QueueComplaint
	case FAQ:
		return QueueTechnical
	default:
		return QueueGeneral
	}
}

// EstimateQueuePosition gives a rough position estimate given current
// queue depth; higher priority messages jump ahead.
func EstimateQueuePosition(priority, currentQueueSize int) int {
	priorityFactor := float64(6-priority) / 5
	return int(math.Ceil(float64(currentQueueSize) * (1 - priorityFactor)))
}
