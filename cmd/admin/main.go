package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"lingua-tutor/internal/config"
	"lingua-tutor/internal/message"
	"lingua-tutor/internal/migrations"
	"lingua-tutor/internal/store"
	"lingua-tutor/internal/vocabulary"
	"lingua-tutor/pkg/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env служебной команды: конфигурация, логгер и ленивое подключение к базе
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.Store
}

func (e *env) open() (store.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	st, err := store.NewStore(e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.store = st
	return st, nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	_ = e.logger.Sync()
}

func main() {
	e := &env{}
	root := &cobra.Command{
		Use:           "lingua-admin",
		Short:         "Служебные команды Lingua Tutor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDatabaseOnly()
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction(zap.IncreaseLevel(cfg.App.GetLogLevel()))
			if err != nil {
				return fmt.Errorf("ошибка инициализации логгера: %w", err)
			}
			e.cfg = cfg
			e.logger = logger
			return nil
		},
	}

	root.AddCommand(migrateCmd(e), wordsCmd(e), proxyCmd(e), cleanupCmd(e))

	err := root.ExecuteContext(context.Background())
	if e.logger != nil {
		e.close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ошибка:", err)
		os.Exit(1)
	}
}

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции базы данных",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Применить все миграции",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrations.RunMigrations(e.cfg, e.logger)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Показать статус миграций",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrations.GetMigrationStatus(e.cfg, e.logger)
			},
		},
	)
	return cmd
}

func wordsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Каталог слов",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Импортировать слова из .xlsx или .csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.open()
			if err != nil {
				return err
			}
			result, err := vocabulary.NewImporter(st.Word(), e.logger).ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Обработано строк: %d\n", result.Processed)
			fmt.Fprintf(out, "Импортировано слов: %d\n", result.Imported)
			fmt.Fprintf(out, "Новых категорий: %d\n", result.Categories)
			fmt.Fprintf(out, "Пропущено: %d\n", result.Skipped)
			for _, msg := range result.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return nil
		},
	})
	return cmd
}

func proxyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Исходящие прокси для запросов к LLM",
	}

	var username, password string
	add := &cobra.Command{
		Use:   "add <host> <port>",
		Short: "Добавить прокси",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil || port <= 0 || port > 65535 {
				return fmt.Errorf("некорректный порт: %s", args[1])
			}
			st, err := e.open()
			if err != nil {
				return err
			}
			p := &models.Proxy{
				Host:     args[0],
				Port:     port,
				Username: username,
				Password: password,
				IsActive: true,
			}
			if err := st.Proxy().Create(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Прокси добавлен: id=%d\n", p.ID)
			return nil
		},
	}
	add.Flags().StringVar(&username, "user", "", "имя пользователя прокси")
	add.Flags().StringVar(&password, "password", "", "пароль прокси")

	list := &cobra.Command{
		Use:   "list",
		Short: "Список прокси со статистикой",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := e.open()
			if err != nil {
				return err
			}
			proxies, err := st.Proxy().List(cmd.Context())
			if err != nil {
				return err
			}
			printProxies(cmd, proxies)
			return nil
		},
	}

	cmd.AddCommand(add, list, setActiveCmd(e, "enable", true), setActiveCmd(e, "disable", false))
	return cmd
}

func setActiveCmd(e *env, use string, active bool) *cobra.Command {
	short := "Включить прокси"
	if !active {
		short = "Отключить прокси"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("некорректный id: %s", args[0])
			}
			st, err := e.open()
			if err != nil {
				return err
			}
			return st.Proxy().SetActive(cmd.Context(), id, active)
		},
	}
}

func printProxies(cmd *cobra.Command, proxies []*models.Proxy) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tАДРЕС\tАКТИВЕН\tЗАПРОСОВ\tУСПЕШНО\tОШИБОК\tДОЛЯ ОШИБОК\tПОСЛЕДНЯЯ ОШИБКА")
	for _, p := range proxies {
		lastErr := "-"
		if p.LastError != nil {
			lastErr = *p.LastError
			if p.LastErrorAt != nil {
				lastErr = p.LastErrorAt.Format(time.DateTime) + " " + lastErr
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%d\t%d\t%.2f\t%s\n",
			p.ID, p, p.IsActive, p.TotalRequests, p.SuccessfulRequests, p.FailedRequests, p.FailureRate(), lastErr)
	}
	w.Flush()
}

func cleanupCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Очистка устаревших данных",
	}

	var days int
	messages := &cobra.Command{
		Use:   "messages",
		Short: "Удалить сообщения диалога старше N дней",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days должен быть положительным")
			}
			st, err := e.open()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			deleted, err := message.NewService(st.Message(), e.logger).CleanupOldMessages(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Удалено сообщений: %d\n", deleted)
			return nil
		},
	}
	messages.Flags().IntVar(&days, "days", 30, "хранить сообщения за последние N дней")

	cmd.AddCommand(messages)
	return cmd
}
