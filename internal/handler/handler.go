package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/staffhub-dev/shift-roster/backend/internal/assignment"
	"github.com/staffhub-dev/shift-roster/backend/internal/config"
	"github.com/staffhub-dev/shift-roster/backend/internal/domain"
	"github.com/staffhub-dev/shift-roster/backend/internal/exchange"
	"github.com/staffhub-dev/shift-roster/backend/internal/repository"
	"github.com/staffhub-dev/shift-roster/backend/internal/rules"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client
	engine      *rules.Engine
	transactor  *assignment.Transactor
	machine     *exchange.Machine

	Mux *chi.Mux
}

func NewHandler(
	cfg *config.Config,
	repo *repository.Repository,
	mailCh *amqp.Channel,
	rdb *redis.Client,
	engine *rules.Engine,
	transactor *assignment.Transactor,
	machine *exchange.Machine,
) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,
		engine:      engine,
		transactor:  transactor,
		machine:     machine,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
			r.Route("/availabilities", func(r chi.Router) {
				r.Use(h.preventInactiveStaff)
				r.Get("/", h.GetMyAvailabilities)
				r.Post("/", h.CreateMyAvailability)
				r.Post("/exceptions", h.CreateMyAvailabilityException)
			})
			r.Get("/assignments", h.GetMyAssignments)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager})).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleManager})).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleManager})).Delete("/", h.DeleteUser)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager})).Patch("/password", h.UpdateUserPassword)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager})).Post("/certifications", h.CreateCertification)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager})).Post("/skills", h.AddStaffSkill)
			})
		})

		r.Route("/locations", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager})).Post("/", h.CreateLocation)
			r.Get("/", h.GetAllLocations)
		})

		r.Route("/shifts", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleScheduler, domain.RoleManager})).Post("/", h.CreateShift)
			r.Get("/", h.GetShiftsByLocationAndWeek)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.shiftInfo)
				r.Get("/", h.GetShift)
				r.With(h.RequiredRole([]domain.Role{domain.RoleScheduler, domain.RoleManager})).Patch("/", h.UpdateShift)
				r.Route("/assignments", func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleScheduler, domain.RoleManager}))
					r.Get("/", h.GetShiftAssignments)
					r.Post("/check", h.CheckAssignment)
					r.Post("/", h.CreateAssignment)
					r.Delete("/{staffID}", h.RemoveAssignment)
				})
			})
		})

		r.Route("/exchanges", func(r chi.Router) {
			r.Use(h.myInfo)
			r.With(h.preventInactiveStaff).Post("/", h.CreateExchange)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.swapRequestInfo)
				r.Get("/", h.GetExchange)
				r.Group(func(r chi.Router) {
					r.Use(h.preventInactiveStaff)
					r.Post("/accept", h.AcceptExchange)
					r.Post("/reject", h.RejectExchange)
					r.Post("/cancel", h.CancelExchange)
					r.Post("/pickup", h.PickupExchange)
				})
				r.Group(func(r chi.Router) {
					r.Use(h.RequiredRole([]domain.Role{domain.RoleManager}))
					r.Post("/approve", h.ApproveExchange)
					r.Post("/manager-reject", h.ManagerRejectExchange)
				})
			})
		})
	})
}
