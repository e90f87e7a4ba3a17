package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/staffhub-dev/shift-roster/backend/internal/config"
	"github.com/staffhub-dev/shift-roster/backend/internal/exchange"
	"github.com/staffhub-dev/shift-roster/backend/internal/notify"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
	"github.com/staffhub-dev/shift-roster/backend/internal/sweeper"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		notify.QueueName,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 组装状态机和清扫器
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)
	engine := rules.NewEngine(repo)
	emitter := notify.NewEmitter(cfg, ch)
	machine := exchange.NewMachine(repo, engine, emitter)
	sw := sweeper.NewSweeper(cfg, machine)

	/**********************************************
	 * 运行，直到收到退出信号
	 **********************************************/
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		sw.Run(ctx)
	}()

	logger.Info("sweeper 已启动（按 CTRL+C 退出）")
	<-sigChan

	slog.Info("正在关闭 sweeper...")
	cancel()
	wg.Wait()
	slog.Info("sweeper 已成功关闭")
}
