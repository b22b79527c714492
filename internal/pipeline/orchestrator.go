package pipeline

import "context"

type RunRequest struct {
	Topic    string
	Language string
	Model    string
	Voice    string
}

type RunResult struct {
	Script   string       `json:"script"`
	Audio    *AudioResult `json:"audio"`
	Images   []TimedAsset `json:"images"`
	VideoURL string       `json:"videoUrl"`
}

// Run executes every stage in order, threading the project id and duration
// from the audio stage into the timeline and the audio locator into
// assembly. The first failing stage ends the run and its error is returned
// as is. observe, when set, is called as each stage starts.
func (p *Pipeline) Run(ctx context.Context, req RunRequest, observe func(Stage)) (*RunResult, error) {
	if observe == nil {
		observe = func(Stage) {}
	}
	res := &RunResult{}

	observe(StageScript)
	script, err := p.GenerateScript(ctx, ScriptRequest{Topic: req.Topic, Language: req.Language, Model: req.Model})
	if err != nil {
		return res, err
	}
	res.Script = script

	observe(StageAudio)
	audio, err := p.GenerateAudio(ctx, AudioRequest{Script: script, Voice: req.Voice})
	if err != nil {
		return res, err
	}
	res.Audio = audio

	observe(StageTimeline)
	images, err := p.RecommendImages(ctx, TimelineRequest{
		Script:    script,
		Duration:  float64(audio.Duration),
		ProjectID: audio.ProjectID,
		Model:     req.Model,
	})
	if err != nil {
		return res, err
	}
	res.Images = images

	observe(StageAssembly)
	videoURL, err := p.GenerateVideo(ctx, AssemblyRequest{AudioURL: audio.Reference, Images: images})
	if err != nil {
		return res, err
	}
	res.VideoURL = videoURL
	return res, nil
}
