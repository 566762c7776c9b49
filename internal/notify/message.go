package notify

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Kind string

const (
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindDispatched       Kind = "dispatched"
	KindDelivered        Kind = "delivered"
	KindOperatorReply    Kind = "operator_reply"
)

// Message is an outbound WhatsApp message.
type Message struct {
	Kind       Kind     `json:"kind"`
	CustomerID string   `json:"customer_id,omitempty"`
	OrderID    string   `json:"order_id,omitempty"`
	To         string   `json:"to"`
	Body       string   `json:"body"`
	MediaURLs  []string `json:"media_urls,omitempty"`
}

// Result mirrors the provider answer: a message id on success, an error text otherwise.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

var printer = message.NewPrinter(language.MustParse("es-CO"))

// FormatCOP renders cents as whole pesos with local digit grouping.
func FormatCOP(cents int64) string {
	pesos := decimal.New(cents, -2).Round(0).IntPart()
	return printer.Sprintf("$%d", pesos)
}

func greetingName(name string) string {
	if name == "" {
		return "cliente"
	}
	return name
}

func PaymentConfirmed(name string, totalCents int64, shortID string) string {
	return fmt.Sprintf("✅ *¡Pago confirmado!*\n\nHola %s, hemos recibido tu pago de %s para el pedido *#%s*.\n\nEstamos preparando tu pedido y te avisaremos cuando esté en camino.",
		greetingName(name), FormatCOP(totalCents), shortID)
}

func Dispatched(name, carrier, tracking string) string {
	return fmt.Sprintf("📦 *¡Tu paquete va en camino!*\n\nHola %s, tu orden ha sido despachada con la transportadora *%s*.\n\n📝 *Número de Guía:* %s\n\nPuedes rastrear tu envío en la página oficial de %s.",
		greetingName(name), carrier, tracking, carrier)
}

func Delivered(name, shortID string) string {
	return fmt.Sprintf("🎉 Hola %s, tu pedido *#%s* fue entregado. ¡Gracias por tu compra!",
		greetingName(name), shortID)
}
