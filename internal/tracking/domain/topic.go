package domain

import "strings"

// Префиксы топиков. Имя топика детерминированно выводится из id сущности;
// существование сущности ядро не проверяет — это зона ответственности
// сервисов users/orders.
const (
	TopicPrefixDriver = "driver:"
	TopicPrefixOrder  = "order:"
)

// DriverTopic — топик всех обновлений водителя
func DriverTopic(driverID string) string {
	return TopicPrefixDriver + driverID
}

// OrderTopic — топик обновлений, привязанных к заявке
func OrderTopic(orderID string) string {
	return TopicPrefixOrder + orderID
}

// ValidTopic проверяет, что строка — корректное имя топика
func ValidTopic(topic string) bool {
	if id, ok := strings.CutPrefix(topic, TopicPrefixDriver); ok {
		return id != ""
	}
	if id, ok := strings.CutPrefix(topic, TopicPrefixOrder); ok {
		return id != ""
	}
	return false
}
