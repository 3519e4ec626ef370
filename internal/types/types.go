package types

import "time"

// VideoTask is one video to publish. Tasks are passed by value and never
// mutated once built.
type VideoTask struct {
	Path      string     `json:"path" toml:"path"`
	Caption   string     `json:"caption" toml:"caption"`
	Schedule  *time.Time `json:"schedule,omitempty" toml:"schedule,omitempty"`
	ProductID string     `json:"product_id,omitempty" toml:"product_id,omitempty"`
}

// Scheduled reports whether the task carries a publish time.
func (t VideoTask) Scheduled() bool {
	return t.Schedule != nil
}

// CookieRecord is a single browser cookie as read from a jar or the browser.
type CookieRecord struct {
	Domain   string     `json:"domain"`
	Path     string     `json:"path"`
	Name     string     `json:"name"`
	Value    string     `json:"value"`
	Secure   bool       `json:"secure"`
	HTTPOnly bool       `json:"http_only"`
	Expiry   *time.Time `json:"expiry,omitempty"`
}

// Expired reports whether the cookie has an expiry before now.
func (c CookieRecord) Expired(now time.Time) bool {
	return c.Expiry != nil && c.Expiry.Before(now)
}

// UploadOutcome is the result of one task.
type UploadOutcome struct {
	Task     VideoTask  `json:"task"`
	Reason   ReasonCode `json:"reason,omitempty"`
	Err      error      `json:"-"`
	Message  string     `json:"message,omitempty"`
	Attempts int        `json:"attempts"`
}

// Succeeded reports whether the task was published.
func (o UploadOutcome) Succeeded() bool {
	return o.Reason == ReasonNone
}

// Success builds a successful outcome.
func Success(task VideoTask, attempts int) UploadOutcome {
	return UploadOutcome{Task: task, Attempts: attempts}
}

// Failure builds a failed outcome classified from err.
func Failure(task VideoTask, attempts int, err error) UploadOutcome {
	o := UploadOutcome{
		Task:     task,
		Reason:   ReasonOf(err),
		Err:      err,
		Attempts: attempts,
	}
	if err != nil {
		o.Message = err.Error()
	}
	return o
}
