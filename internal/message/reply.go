package message

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

// Article is one entry of a news reply.
type Article struct {
	Title       string
	Description string
	PicURL      string
	URL         string
}

// Reply is a passive reply to an inbound message.
type Reply struct {
	ToUserName   string
	FromUserName string
	CreateTime   int64
	Kind         Kind

	Content     string // text
	MediaID     string // image, voice, video
	Title       string // video
	Description string // video
	Articles    []Article
}

// Marshal serializes the reply to the platform's XML form.
func (r *Reply) Marshal() ([]byte, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("xml")

	addCData(root, "ToUserName", r.ToUserName)
	addCData(root, "FromUserName", r.FromUserName)
	addText(root, "CreateTime", strconv.FormatInt(r.CreateTime, 10))
	addCData(root, "MsgType", string(r.Kind))

	switch r.Kind {
	case KindText:
		addCData(root, "Content", r.Content)
	case KindImage:
		addCData(root.CreateElement("Image"), "MediaId", r.MediaID)
	case KindVoice:
		addCData(root.CreateElement("Voice"), "MediaId", r.MediaID)
	case KindVideo:
		video := root.CreateElement("Video")
		addCData(video, "MediaId", r.MediaID)
		addCData(video, "Title", r.Title)
		addCData(video, "Description", r.Description)
	case KindNews:
		if len(r.Articles) == 0 {
			return nil, fmt.Errorf("news reply has no articles")
		}
		addText(root, "ArticleCount", strconv.Itoa(len(r.Articles)))
		articles := root.CreateElement("Articles")
		for _, a := range r.Articles {
			item := articles.CreateElement("item")
			addCData(item, "Title", a.Title)
			addCData(item, "Description", a.Description)
			addCData(item, "PicUrl", a.PicURL)
			addCData(item, "Url", a.URL)
		}
	default:
		return nil, fmt.Errorf("unsupported reply kind %q", r.Kind)
	}

	return doc.WriteToBytes()
}
