package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/pkg/rabbitmq"
)

// Command routing keys accepted from the back office.
const (
	CommandPaymentStatus  = "command.payment_status"
	CommandDeliveryStatus = "command.delivery_status"
)

// Command is a back-office status update.
type Command struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// CommandHandler applies back-office commands to the manager. Malformed commands and commands for
// unknown orders or statuses are dropped; everything else is retried.
func (m *Manager) CommandHandler() rabbitmq.Handler {
	return func(ctx context.Context, routingKey string, body []byte) error {
		var cmd Command
		if err := json.Unmarshal(body, &cmd); err != nil {
			return fmt.Errorf("%w: decode command: %v", rabbitmq.ErrPermanent, err)
		}
		if cmd.OrderID <= 0 {
			return fmt.Errorf("%w: missing order id", rabbitmq.ErrPermanent)
		}

		var err error
		switch routingKey {
		case CommandPaymentStatus:
			_, err = m.UpdatePaymentStatus(ctx, cmd.OrderID, domain.PaymentStatus(cmd.Status))
		case CommandDeliveryStatus:
			_, err = m.UpdateDeliveryStatus(ctx, cmd.OrderID, domain.DeliveryStatus(cmd.Status))
		default:
			return fmt.Errorf("%w: unknown command %q", rabbitmq.ErrPermanent, routingKey)
		}

		if errors.Is(err, ErrInvalidStatus) || errors.Is(err, ErrOrderNotFound) {
			return fmt.Errorf("%w: %v", rabbitmq.ErrPermanent, err)
		}
		return err
	}
}
