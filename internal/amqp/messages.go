package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// EventExpenseRecorded is the message type stamped on every publication.
const EventExpenseRecorded = "expense.recorded"

// ExpenseRecordedMessage announces one stored installment row. It carries
// only identifiers; consumers load the full expense from the database.
type ExpenseRecordedMessage struct {
	ExpenseID        int64     `json:"expense_id"`
	InstallmentGroup string    `json:"installment_group"`
	Month            string    `json:"month"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewExpenseRecordedMessage(id int64, group, month string) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ExpenseID:        id,
		InstallmentGroup: group,
		Month:            month,
		Timestamp:        time.Now().UTC(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseRecordedMessageFromJSON decodes a message body. A body without a
// positive expense id is rejected.
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ExpenseID <= 0 {
		return nil, errors.New("message has no expense id")
	}
	return &msg, nil
}
