package mockhost

import (
	"time"

	"github.com/google/uuid"

	"github.com/lydakis/blenderbridge/internal/config"
)

// Trial key the provider hands out for evaluation. Status reports a
// key as free_trial when it matches.
const rodinFreeTrialKey = "k9TcfFoEhNd9cCPP2guHAHHHkctZHIRhZDywZ1euGUXwihbYLpOjQhofby80NJez"

// rodinJob is one simulated generation task. Each poll advances it one
// stage, so a job reads as done from the third poll on.
type rodinJob struct {
	uuid  string
	key   string
	mode  string
	polls int
}

func (j *rodinJob) done() bool {
	return j.polls >= 3
}

// rodinJobs indexes jobs both ways: polling addresses them by
// subscription key or request id, importing by task uuid.
type rodinJobs struct {
	byKey  map[string]*rodinJob
	byUUID map[string]*rodinJob
}

func newRodinJobs() *rodinJobs {
	return &rodinJobs{
		byKey:  make(map[string]*rodinJob),
		byUUID: make(map[string]*rodinJob),
	}
}

func (r *rodinJobs) add(job *rodinJob) {
	r.byKey[job.key] = job
	r.byUUID[job.uuid] = job
}

func (h *Host) createRodinJob(params map[string]any) (any, error) {
	var p struct {
		TextPrompt    string `mapstructure:"text_prompt"`
		Images        []any  `mapstructure:"images"`
		BBoxCondition []any  `mapstructure:"bbox_condition"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if h.cfg.Hyper3D.APIKey == "" {
		return map[string]any{"error": "Hyper3D Rodin API key is not configured"}, nil
	}

	if h.rodinMode() == config.Hyper3DModeFalAI {
		requestID := uuid.NewString()
		h.jobs.add(&rodinJob{uuid: requestID, key: requestID, mode: config.Hyper3DModeFalAI})
		return map[string]any{
			"request_id": requestID,
			"status":     "IN_QUEUE",
		}, nil
	}

	taskUUID := uuid.NewString()
	subscriptionKey := uuid.NewString()
	h.jobs.add(&rodinJob{uuid: taskUUID, key: subscriptionKey, mode: config.Hyper3DModeMainSite})
	return map[string]any{
		"message": "Submitted.",
		"uuid":    taskUUID,
		"jobs": map[string]any{
			"uuids":            []string{uuid.NewString(), uuid.NewString()},
			"subscription_key": subscriptionKey,
		},
		"submit_time": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Host) pollRodinJobStatus(params map[string]any) (any, error) {
	var p struct {
		SubscriptionKey string `mapstructure:"subscription_key"`
		RequestID       string `mapstructure:"request_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	if h.rodinMode() == config.Hyper3DModeFalAI {
		job := h.jobs.byKey[p.RequestID]
		if job == nil {
			return map[string]any{"status": "NOT_FOUND"}, nil
		}
		job.polls++
		status := "IN_QUEUE"
		switch {
		case job.polls >= 3:
			status = "COMPLETED"
		case job.polls == 2:
			status = "IN_PROGRESS"
		}
		return map[string]any{"status": status}, nil
	}

	job := h.jobs.byKey[p.SubscriptionKey]
	if job == nil {
		return map[string]any{"status_list": []string{}}, nil
	}
	job.polls++
	status := "Waiting"
	switch {
	case job.polls >= 3:
		status = "Done"
	case job.polls == 2:
		status = "Generating"
	}
	return map[string]any{"status_list": []string{status, status}}, nil
}

func (h *Host) importGeneratedAsset(params map[string]any) (any, error) {
	var p struct {
		Name      string `mapstructure:"name"`
		TaskUUID  string `mapstructure:"task_uuid"`
		RequestID string `mapstructure:"request_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}

	var job *rodinJob
	if h.rodinMode() == config.Hyper3DModeFalAI {
		job = h.jobs.byKey[p.RequestID]
	} else {
		job = h.jobs.byUUID[p.TaskUUID]
	}
	if job == nil || !job.done() {
		return map[string]any{
			"succeed": false,
			"error":   "Generation failed. Please first make sure that all jobs of the task are done and then try again later.",
		}, nil
	}

	// Rodin results come back normalized to about a unit cube.
	obj := &Object{
		Name:    p.Name,
		Type:    "MESH",
		Scale:   [3]float64{1, 1, 1},
		Visible: true,
		Mesh: &Mesh{
			Vertices:    482,
			Edges:       960,
			Polygons:    480,
			HalfExtents: [3]float64{0.5, 0.5, 0.5},
		},
	}
	name := h.scene.addObject(obj)
	bounds := obj.worldBounds()
	return map[string]any{
		"succeed":            true,
		"name":               name,
		"type":               obj.Type,
		"location":           obj.Location[:],
		"rotation":           obj.Rotation[:],
		"scale":              obj.Scale[:],
		"world_bounding_box": [][]float64{bounds[0][:], bounds[1][:]},
	}, nil
}
