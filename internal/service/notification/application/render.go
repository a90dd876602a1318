package application

import (
	"fmt"
	"strings"
	"time"

	"freshdrop/internal/service/order/domain"
)

// Message 是渲染好的客户通知
type Message struct {
	To      string
	Name    string
	Subject string
	Body    string
}

var statusLabels = map[domain.FulfillmentStatus]string{
	domain.StatusReceived:  "Mottagen",
	domain.StatusBooked:    "Bokad",
	domain.StatusPickedUp:  "Hämtad",
	domain.StatusWashing:   "Tvättas",
	domain.StatusInTransit: "På väg",
	domain.StatusDelivered: "Levererad",
	domain.StatusCancelled: "Avbruten",
}

// Render 按事件类型生成通知。没有收件人或未知类型时返回 false。
func Render(ev domain.OrderEvent, loc *time.Location) (Message, bool) {
	if ev.Email == "" {
		return Message{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	msg := Message{To: ev.Email, Name: ev.Name}

	switch ev.Type {
	case domain.EventOrderPlaced:
		msg.Subject = "Tack för din beställning"
		msg.Body = fmt.Sprintf("Hej %s!\n\nVi har tagit emot din beställning %s.\nHämtning: %s %s\nBeräknat pris: %d %s\n",
			ev.Name, ev.OrderID, ev.PickupDate, ev.PickupWindow, ev.TotalPrice, currencyLabel(ev.Currency))
		if ev.DeliveryEstimateAt != nil {
			msg.Body += fmt.Sprintf("Beräknad leverans: %s\n", ev.DeliveryEstimateAt.In(loc).Format("2006-01-02 15:04"))
		}
	case domain.EventOrderPaid:
		msg.Subject = "Betalning mottagen"
		msg.Body = fmt.Sprintf("Hej %s!\n\nVi har tagit emot din betalning på %d %s för beställning %s.\n",
			ev.Name, ev.TotalPrice, currencyLabel(ev.Currency), ev.OrderID)
	case domain.EventOrderStatusChanged:
		label, ok := statusLabels[ev.Status]
		if !ok {
			label = string(ev.Status)
		}
		msg.Subject = "Din beställning har uppdaterats"
		msg.Body = fmt.Sprintf("Hej %s!\n\nDin beställning %s har nu status: %s.\n", ev.Name, ev.OrderID, label)
	default:
		return Message{}, false
	}
	return msg, true
}

func currencyLabel(c string) string {
	if c == "" || strings.EqualFold(c, "sek") {
		return "kr"
	}
	return strings.ToUpper(c)
}
