package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// discordAPI is the part of *discordgo.Session a channel destination uses.
type discordAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// DiscordNotifier discovers signal channels across every guild the bot has
// joined.
type DiscordNotifier struct {
	session     *discordgo.Session
	channelName string
	allowed     map[string]bool
	log         zerolog.Logger
}

// NewDiscordNotifier creates a gateway session. Call Open before discovery.
// channelIDs, when non-empty, restricts discovery to those channels.
func NewDiscordNotifier(token, channelName string, channelIDs []string, log zerolog.Logger) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	allowed := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		allowed[id] = true
	}
	return &DiscordNotifier{
		session:     session,
		channelName: channelName,
		allowed:     allowed,
		log:         log.With().Str("component", "discord").Logger(),
	}, nil
}

func (d *DiscordNotifier) Open() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	d.log.Info().Msg("discord gateway connected")
	return nil
}

func (d *DiscordNotifier) Close() error {
	return d.session.Close()
}

// Destinations returns the first text channel named channelName in each guild.
func (d *DiscordNotifier) Destinations(_ context.Context) ([]Destination, error) {
	d.session.State.RLock()
	defer d.session.State.RUnlock()

	var out []Destination
	for _, g := range d.session.State.Guilds {
		if ch := d.match(g.Channels); ch != nil {
			out = append(out, &discordChannel{api: d.session, guild: g.Name, channelID: ch.ID, channel: ch.Name})
		}
	}
	return out, nil
}

func (d *DiscordNotifier) match(channels []*discordgo.Channel) *discordgo.Channel {
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText || ch.Name != d.channelName {
			continue
		}
		if len(d.allowed) > 0 && !d.allowed[ch.ID] {
			continue
		}
		return ch
	}
	return nil
}

type discordChannel struct {
	api       discordAPI
	guild     string
	channelID string
	channel   string
}

// Guild names are not unique, so the channel id is the identity.
func (c *discordChannel) ID() string     { return "discord:" + c.channelID }
func (c *discordChannel) Name() string   { return "discord:" + c.guild + "#" + c.channel }
func (c *discordChannel) Markup() Markup { return Markdown }

func (c *discordChannel) Send(ctx context.Context, text string) (string, error) {
	return c.post(ctx, &discordgo.MessageSend{Content: text})
}

func (c *discordChannel) SendRich(ctx context.Context, text string, embed Embed) (string, error) {
	return c.post(ctx, &discordgo.MessageSend{
		Content: text,
		Embeds:  []*discordgo.MessageEmbed{{Description: embed.Description, Color: embed.Color}},
	})
}

func (c *discordChannel) post(ctx context.Context, data *discordgo.MessageSend) (string, error) {
	msg, err := c.api.ChannelMessageSendComplex(c.channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord send to %s: %w", c.channelID, err)
	}
	return msg.ID, nil
}

func (c *discordChannel) Delete(ctx context.Context, messageID string) error {
	err := c.api.ChannelMessageDelete(c.channelID, messageID, discordgo.WithContext(ctx))
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("discord delete %s in %s: %w", messageID, c.channelID, err)
	}
	return nil
}
