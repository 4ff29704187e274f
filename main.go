package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/visionclaw/visionclaw/audio"
	"github.com/visionclaw/visionclaw/config"
	"github.com/visionclaw/visionclaw/gemini"
	"github.com/visionclaw/visionclaw/history"
	"github.com/visionclaw/visionclaw/openclaw"
	"github.com/visionclaw/visionclaw/session"
	"github.com/visionclaw/visionclaw/video"
)

func main() {
	modeFlag := flag.String("mode", "phone", "capture mode: phone or glasses")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	log.Printf("🚀 Starting VisionClaw")
	log.Printf("📊 Model: %s, voice: %s", cfg.Model, cfg.VoiceName)

	if !cfg.IsConfigured() {
		log.Printf("⚠️ GEMINI_API_KEY is a placeholder, the live session will not connect")
	}
	if !cfg.IsOpenClawConfigured() {
		log.Printf("⚠️ OpenClaw gateway not configured, execute tool calls will fail")
	}

	var mode session.Mode
	switch *modeFlag {
	case "phone":
		mode = session.ModePhone
	case "glasses":
		mode = session.ModeGlasses
	default:
		log.Fatalf("❌ Unknown mode %q (want phone or glasses)", *modeFlag)
	}

	store := history.NewStore(cfg.RedisURL, cfg.RedisPassword)
	defer store.Close()

	client := gemini.NewClient(cfg)
	bridge := openclaw.NewBridge(cfg)
	router := openclaw.NewRouter(bridge, client)

	capture := audio.NewCapture(func() (audio.CaptureDevice, error) {
		return audio.NewMicDevice(cfg.InputSampleRate)
	}, cfg.ChunkSize())
	playback := audio.NewPlayback(func() (audio.PlaybackDevice, error) {
		return audio.NewSpeakerDevice(cfg.OutputSampleRate)
	})

	camera := video.NewCapture(cfg.VideoFrameInterval, cfg.VideoJPEGQuality, cfg.VideoMaxDimension)
	glasses := video.NewUnavailableGlasses()

	orchestrator := session.NewOrchestrator(client, capture, playback, camera, glasses, router, store)

	if err := orchestrator.StartSession(mode); err != nil {
		log.Fatalf("❌ Failed to start session: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Printf("🛑 Shutting down...")
	orchestrator.StopSession()

	if transcript, err := store.Export(orchestrator.SessionID()); err == nil {
		log.Printf("📜 Transcript:\n%s", transcript)
	}
	log.Printf("✅ Shutdown complete")
}
