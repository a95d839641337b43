package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/jypelle/epdframe/apimodel"
	"github.com/sirupsen/logrus"
	"sync"
)

// MetaInfoCache fetches the topology on first use and keeps it for the
// process lifetime. A failed fetch leaves the cache empty.
type MetaInfoCache struct {
	client *Client
	log    *logrus.Entry

	lock     sync.Mutex
	metaInfo *apimodel.MetaInfo
}

func NewMetaInfoCache(client *Client) *MetaInfoCache {
	return &MetaInfoCache{
		client: client,
		log:    logrus.WithField("source", "remote"),
	}
}

func (m *MetaInfoCache) MetaInfo(ctx context.Context) (apimodel.MetaInfo, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.metaInfo != nil {
		return *m.metaInfo, nil
	}

	body, err := m.client.get(ctx, m.client.InfoUrl())
	if err != nil {
		m.log.Errorf("could not read info.json from server: %v", err)
		return apimodel.MetaInfo{}, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
	}

	var metaInfo apimodel.MetaInfo
	if err = json.Unmarshal(body, &metaInfo); err != nil {
		m.log.Errorf("could not parse info.json: %v", err)
		return apimodel.MetaInfo{}, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
	}
	if err = metaInfo.Validate(); err != nil {
		m.log.Errorf("invalid info.json: %v", err)
		return apimodel.MetaInfo{}, fmt.Errorf("%w: %w", ErrMetadataUnavailable, err)
	}

	m.log.Infof("get metainfo: %d apps %v", metaInfo.AppCount(), metaInfo.Apps)
	m.metaInfo = &metaInfo
	return metaInfo, nil
}

func (m *MetaInfoCache) AppCount(ctx context.Context) (int, error) {
	metaInfo, err := m.MetaInfo(ctx)
	if err != nil {
		return 0, err
	}
	return metaInfo.AppCount(), nil
}

func (m *MetaInfoCache) ScreenCount(ctx context.Context, app int) (int, error) {
	metaInfo, err := m.MetaInfo(ctx)
	if err != nil {
		return 0, err
	}
	return metaInfo.ScreenCount(app)
}
