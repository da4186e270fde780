// Package chat connects the render pipeline to chat platforms.
//
// A Bot recognizes commands in incoming messages, renders the markup,
// publishes the image and replies with a link or an error report. Transports
// such as Twitch feed messages to Bot.Handle and implement Sender for the
// replies.
package chat
