// Package server exposes single customer address lookups over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elnosh/walletgen/customer"
	"github.com/elnosh/walletgen/wallet"
	"github.com/gorilla/mux"
)

type Server struct {
	httpServer *http.Server
	derivers   wallet.DeriverFactory
	logger     *slog.Logger
}

func SetupServer(addr string, derivers wallet.DeriverFactory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{derivers: derivers, logger: logger}
	s.setupHttpServer(addr)
	return s
}

func (s *Server) Start() error {
	s.logger.Info("server listening on: " + s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) setupHttpServer(addr string) {
	r := mux.NewRouter()
	r.HandleFunc("/v1/address/{customer_id}", s.getAddress).Methods(http.MethodGet, http.MethodOptions)
	r.Use(setupHeaders)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

func setupHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, origin")

		if req.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(rw, req)
	})
}

type AddressResponse struct {
	CustomerID     string `json:"customer_id"`
	DerivationPath string `json:"derivation_path"`
	WalletAddress  string `json:"wallet_address"`
}

func (s *Server) getAddress(rw http.ResponseWriter, req *http.Request) {
	id := strings.TrimSpace(mux.Vars(req)["customer_id"])

	path, err := customer.DerivationPath(id)
	if err != nil {
		s.writeErr(rw, http.StatusBadRequest, customer.InvalidIDError(id))
		return
	}

	deriver, err := s.derivers()
	if err != nil {
		s.logger.Error("could not create deriver", slog.String("error", err.Error()))
		s.writeErr(rw, http.StatusInternalServerError, customer.DerivationError(err))
		return
	}
	address, err := deriver.DeriveAddress(path)
	if err != nil {
		s.logger.Error("could not derive address", slog.String("customer_id", id), slog.String("error", err.Error()))
		s.writeErr(rw, http.StatusInternalServerError, customer.DerivationError(err))
		return
	}

	response, _ := json.Marshal(AddressResponse{
		CustomerID:     id,
		DerivationPath: path,
		WalletAddress:  address,
	})
	rw.Write(response)
}

func (s *Server) writeErr(rw http.ResponseWriter, status int, custErr *customer.Error) {
	rw.WriteHeader(status)
	errRes, _ := json.Marshal(custErr)
	rw.Write(errRes)
}
