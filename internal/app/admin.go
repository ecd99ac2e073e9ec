package app

import (
	"context"

	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/config"
	"github.com/igifu/campus-meals/internal/security"
	log "github.com/sirupsen/logrus"
)

// SeedAdmin creates the default admin when no admin account exists yet.
// Without a configured password nothing is created.
func SeedAdmin(ctx context.Context, store *accounts.Store, seed config.AdminSeedConfig) (bool, error) {
	exists, errHas := store.HasAdmin(ctx)
	if errHas != nil {
		return false, errHas
	}
	if exists {
		return false, nil
	}
	if seed.Password == "" {
		log.Warnf("no admin account exists; set %s or default-admin.password to create one", config.EnvDefaultAdminPass)
		return false, nil
	}
	hash, errHash := security.HashPassword(seed.Password)
	if errHash != nil {
		return false, errHash
	}
	created, errEnsure := store.EnsureAdmin(ctx, accounts.NewUser{
		Username:     seed.Username,
		Email:        seed.Email,
		PasswordHash: hash,
	})
	if errEnsure != nil {
		return false, errEnsure
	}
	if created {
		log.WithField("username", seed.Username).Info("default admin created")
	}
	return created, nil
}
