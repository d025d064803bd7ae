// Package releases implements the release entity. Releases stay on the
// REST transport end to end: the asset download endpoint has no GraphQL
// equivalent. Binary assets are streamed into the release-assets
// directory on save and re-uploaded on restore; a size mismatch on
// download fails the entity rather than storing a truncated artifact.
package releases

import (
	"context"
	"fmt"
	"os"
	"path"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/repovault/repovault/consts"
	"github.com/repovault/repovault/internal/convert"
	"github.com/repovault/repovault/internal/entity"
	"github.com/repovault/repovault/internal/model"
	"github.com/repovault/repovault/internal/sanitize"
	"github.com/repovault/repovault/internal/strategy"
	"github.com/repovault/repovault/pkg/errors"
	"github.com/repovault/repovault/pkg/logger"
)

func init() {
	convert.RegisterConverter(consts.EntityReleases, "convert_release", func(raw any) (any, error) {
		r, ok := raw.(*gh.RepositoryRelease)
		if !ok {
			return nil, errors.ErrValidation("convert_release: unexpected value")
		}
		return convertRelease(r), nil
	})

	convert.RegisterOperation(convert.Operation{
		Method:           "get_repository_releases",
		Entity:           consts.EntityReleases,
		Converter:        "convert_release",
		CacheKeyTemplate: "repo",
	})
	convert.RegisterOperation(convert.Operation{Method: "get_release_asset", Entity: consts.EntityReleases})
	convert.RegisterOperation(convert.Operation{Method: "create_release", Entity: consts.EntityReleases})
	convert.RegisterOperation(convert.Operation{Method: "create_release_asset", Entity: consts.EntityReleases})

	entity.Register(entity.Declaration{
		Name:                    consts.EntityReleases,
		EnvVar:                  "INCLUDE_RELEASES",
		ValueType:               entity.ValueBool,
		Default:                 true,
		RequiredServicesSave:    []string{entity.ServiceAPI, entity.ServiceStorage},
		RequiredServicesRestore: []string{entity.ServiceAPI, entity.ServiceStorage},
		NewSaver:                newSaver,
		NewRestorer:             newRestorer,
	})
}

func convertRelease(r *gh.RepositoryRelease) model.Release {
	rel := model.Release{
		ID:              r.GetID(),
		TagName:         r.GetTagName(),
		TargetCommitish: r.GetTargetCommitish(),
		Name:            r.GetName(),
		Draft:           r.GetDraft(),
		Prerelease:      r.GetPrerelease(),
		Body:            r.GetBody(),
		HTMLURL:         r.GetHTMLURL(),
		CreatedAt:       r.GetCreatedAt().Time,
	}
	if r.Author != nil {
		rel.Author = &model.User{Login: r.Author.GetLogin(), HTMLURL: r.Author.GetHTMLURL()}
	}
	for _, a := range r.Assets {
		rel.Assets = append(rel.Assets, model.ReleaseAsset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			Size:        int64(a.GetSize()),
			ContentType: a.GetContentType(),
			DownloadURL: a.GetBrowserDownloadURL(),
		})
	}
	return rel
}

// assetPath is the artifact path of one downloaded asset
func assetPath(tag, name string) string {
	return path.Join(consts.ReleaseAssetsDir, tag, name)
}

func newSaver(svc *entity.Services) (strategy.Saver, error) {
	return &strategy.SavePipeline[model.Release]{
		Entity: consts.EntityReleases,
		Read: func(ctx context.Context, rc *strategy.Context) ([]model.Release, error) {
			raw, err := svc.API.ListReleases(ctx, svc.Config.Repo)
			if err != nil {
				return nil, err
			}
			out := make([]model.Release, 0, len(raw))
			for _, r := range raw {
				out = append(out, convertRelease(r))
			}
			return out, nil
		},
		Transform: func(ctx context.Context, items []model.Release, rc *strategy.Context) ([]model.Release, error) {
			for i := range items {
				seen := make(map[string]bool, len(items[i].Assets))
				for j := range items[i].Assets {
					asset := &items[i].Assets[j]
					if seen[asset.Name] {
						return nil, errors.ErrValidation(fmt.Sprintf(
							"release %s has multiple assets named %s", items[i].TagName, asset.Name))
					}
					seen[asset.Name] = true
					rel := assetPath(items[i].TagName, asset.Name)

					rd, err := svc.API.DownloadReleaseAsset(ctx, svc.Config.Repo, asset.ID)
					if err != nil {
						return nil, err
					}
					n, err := svc.Storage.WriteFile(rel, rd)
					rd.Close()
					if err != nil {
						return nil, err
					}
					if asset.Size > 0 && n != asset.Size {
						return nil, errors.ErrIO(fmt.Sprintf(
							"asset %s: wrote %d bytes, expected %d", rel, n, asset.Size), nil)
					}
					asset.LocalPath = rel
					logger.Debug("Downloaded release asset",
						zap.String("asset", rel),
						zap.Int64("bytes", n),
					)
				}
			}
			return items, nil
		},
		Write: func(items []model.Release) error {
			return svc.Storage.WriteJSON(consts.ReleasesFile, items)
		},
	}, nil
}

func newRestorer(svc *entity.Services) (strategy.Restorer, error) {
	return &strategy.RestorePipeline[model.Release]{
		Entity: consts.EntityReleases,
		Read: func(rc *strategy.Context) ([]model.Release, error) {
			var out []model.Release
			if err := svc.Storage.ReadJSON(consts.ReleasesFile, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		RestoreOne: func(ctx context.Context, item model.Release, rc *strategy.Context) (bool, error) {
			body := item.Body
			if rc.IncludeOriginalMetadata {
				body = sanitize.Body(body, provenance(item))
			} else {
				body = sanitize.Mentions(body)
			}

			req := &gh.RepositoryRelease{
				TagName:    &item.TagName,
				Draft:      &item.Draft,
				Prerelease: &item.Prerelease,
			}
			if item.TargetCommitish != "" {
				req.TargetCommitish = &item.TargetCommitish
			}
			if item.Name != "" {
				req.Name = &item.Name
			}
			if body != "" {
				req.Body = &body
			}

			created, err := svc.API.CreateRelease(ctx, svc.Config.Repo, req)
			if err != nil {
				if errors.IsFatal(err) {
					return false, err
				}
				logger.Warn("Skipping release that could not be recreated",
					zap.String("tag", item.TagName),
					zap.Error(err),
				)
				return false, nil
			}

			for _, asset := range item.Assets {
				if asset.LocalPath == "" {
					logger.Warn("Release asset was not downloaded, skipping upload",
						zap.String("tag", item.TagName),
						zap.String("asset", asset.Name),
					)
					continue
				}
				f, err := os.Open(svc.Storage.Abs(asset.LocalPath))
				if err != nil {
					return true, errors.ErrIO("failed to open asset "+asset.LocalPath, err)
				}
				_, uploadErr := svc.API.UploadReleaseAsset(ctx, svc.Config.Repo, created.GetID(), asset.Name, asset.ContentType, f)
				f.Close()
				if uploadErr != nil {
					return true, uploadErr
				}
			}
			return true, nil
		},
	}, nil
}

func provenance(item model.Release) *sanitize.Provenance {
	p := &sanitize.Provenance{
		CreatedAt: item.CreatedAt,
		URL:       item.HTMLURL,
	}
	if item.Author != nil {
		p.AuthorLogin = item.Author.Login
	}
	return p
}
