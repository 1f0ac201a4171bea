package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName 承载排期领域事件（schedule.recalculate.requested / schedule.recalculated 等）
	ExchangeName = "schedule.events"

	heartbeat = 10 * time.Second
)

// dialConfig 为连接设置心跳与 connection_name，便于在管理界面区分 publisher 与各个 consumer
func dialConfig(name string) amqp091.Config {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName("obraflow/" + name)
	return amqp091.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Properties: props,
	}
}

// dial 建立连接、打开 channel 并声明排期事件交换机；任一步失败都会关闭已打开的资源
func dial(url, name string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.DialConfig(url, dialConfig(name))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ as %s: %w", name, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareScheduleExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", ExchangeName, err)
	}
	return conn, ch, nil
}

// declareScheduleExchange 持久化 topic 交换机，路由键形如 schedule.<动作>
func declareScheduleExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, amqp091.ExchangeTopic, true, false, false, false, nil)
}
