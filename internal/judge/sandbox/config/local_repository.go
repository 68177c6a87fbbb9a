// Package config resolves interpreter languages and sandbox profiles from the
// service configuration.
package config

import (
	"context"

	"offlinejudge/internal/judge/sandbox/profile"
	"offlinejudge/internal/judge/sandbox/security"
	appErr "offlinejudge/pkg/errors"
)

// LocalRepository serves configured languages and task profiles. It also
// implements engine.ProfileResolver.
type LocalRepository struct {
	languages map[string]profile.LanguageSpec
	profiles  map[string]profile.TaskProfile
}

// NewLocalRepository indexes the configured lists. Entries without an id are
// skipped and a later entry replaces an earlier one with the same key. When
// no languages are configured the built-in python3 definition and its default
// run profile are used.
func NewLocalRepository(languages []profile.LanguageSpec, profiles []profile.TaskProfile) *LocalRepository {
	if len(languages) == 0 {
		languages = []profile.LanguageSpec{profile.Python3()}
		profiles = append(profiles, profile.DefaultRunProfile(profile.Python3().ID))
	}
	r := &LocalRepository{
		languages: make(map[string]profile.LanguageSpec, len(languages)),
		profiles:  make(map[string]profile.TaskProfile, len(profiles)),
	}
	for _, lang := range languages {
		if lang.ID != "" {
			r.languages[lang.ID] = lang
		}
	}
	for _, prof := range profiles {
		if prof.TaskType != "" && prof.LanguageID != "" {
			r.profiles[prof.Name()] = prof
		}
	}
	return r
}

// RunTarget returns the language and its run profile, the pair a loader is
// built from.
func (r *LocalRepository) RunTarget(ctx context.Context, languageID string) (profile.LanguageSpec, profile.TaskProfile, error) {
	lang, err := r.GetLanguageSpec(ctx, languageID)
	if err != nil {
		return profile.LanguageSpec{}, profile.TaskProfile{}, err
	}
	prof, err := r.GetTaskProfile(ctx, profile.TaskTypeRun, lang.ID)
	if err != nil {
		return profile.LanguageSpec{}, profile.TaskProfile{}, err
	}
	return lang, prof, nil
}

func (r *LocalRepository) GetLanguageSpec(_ context.Context, id string) (profile.LanguageSpec, error) {
	if id == "" {
		return profile.LanguageSpec{}, appErr.ValidationError("language_id", "required")
	}
	lang, ok := r.languages[id]
	if !ok {
		return profile.LanguageSpec{}, appErr.Newf(appErr.NotFound, "language %s is not configured", id)
	}
	return lang, nil
}

func (r *LocalRepository) GetTaskProfile(_ context.Context, taskType profile.TaskType, languageID string) (profile.TaskProfile, error) {
	if taskType == "" || languageID == "" {
		return profile.TaskProfile{}, appErr.ValidationError("task_profile", "task type and language are required")
	}
	name := profile.Name(languageID, taskType)
	prof, ok := r.profiles[name]
	if !ok {
		return profile.TaskProfile{}, appErr.Newf(appErr.NotFound, "task profile %s is not configured", name)
	}
	return prof, nil
}

// Resolve maps a profile name to isolation settings. Submissions get no
// network unless the profile sets disableNetwork: false.
func (r *LocalRepository) Resolve(profileName string) (security.IsolationProfile, error) {
	if profileName == "" {
		return security.IsolationProfile{}, appErr.ValidationError("profile", "required")
	}
	prof, ok := r.profiles[profileName]
	if !ok {
		return security.IsolationProfile{}, appErr.Newf(appErr.NotFound, "task profile %s is not configured", profileName)
	}
	iso := security.IsolationProfile{
		RootFS:         prof.RootFS,
		SeccompProfile: prof.SeccompProfile,
		DisableNetwork: true,
	}
	if prof.DisableNetwork != nil {
		iso.DisableNetwork = *prof.DisableNetwork
	}
	return iso, nil
}
